package classifier

import (
	"math"
	"strings"
	"unicode"
)

const (
	negationScalar  = -0.74
	intensifierStep = 0.293
	exclaimStep     = 0.292
	maxExclaims     = 4
	normalizeAlpha  = 15.0
	negationWindow  = 3
)

// Lexicon is a word-valence sentiment scorer. Valences sit on a -4..4 scale;
// the summed score is squashed into [-1, 1] with s/sqrt(s²+15).
type Lexicon struct {
	valence      map[string]float64
	negations    map[string]bool
	intensifiers map[string]float64
}

func NewLexicon() *Lexicon {
	return &Lexicon{
		valence:      defaultValence,
		negations:    defaultNegations,
		intensifiers: defaultIntensifiers,
	}
}

func (l *Lexicon) Polarity(text string) float64 {
	tokens := tokenize(text)
	var score float64
	for i, tok := range tokens {
		v, ok := l.valence[tok]
		if !ok {
			continue
		}
		if i > 0 {
			if step, ok := l.intensifiers[tokens[i-1]]; ok {
				if v > 0 {
					v += step
				} else {
					v -= step
				}
			}
		}
		for j := max(0, i-negationWindow); j < i; j++ {
			if l.negations[tokens[j]] {
				v *= negationScalar
				break
			}
		}
		score += v
	}
	if score == 0 {
		return 0
	}

	exclaims := min(strings.Count(text, "!"), maxExclaims)
	if score > 0 {
		score += float64(exclaims) * exclaimStep
	} else {
		score -= float64(exclaims) * exclaimStep
	}

	p := score / math.Sqrt(score*score+normalizeAlpha)
	return max(-1, min(1, p))
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}

var defaultNegations = map[string]bool{
	"not": true, "no": true, "never": true, "none": true, "nobody": true, "nothing": true,
	"don't": true, "doesn't": true, "didn't": true, "isn't": true, "aren't": true, "wasn't": true,
	"weren't": true, "can't": true, "cannot": true, "won't": true, "wouldn't": true, "shouldn't": true,
	"dont": true, "doesnt": true, "didnt": true, "isnt": true, "cant": true, "wont": true, "hardly": true,
}

var defaultIntensifiers = map[string]float64{
	"very": intensifierStep, "really": intensifierStep, "so": intensifierStep, "extremely": intensifierStep,
	"super": intensifierStep, "totally": intensifierStep, "absolutely": intensifierStep, "incredibly": intensifierStep,
	"completely": intensifierStep, "utterly": intensifierStep, "most": intensifierStep, "too": intensifierStep,
	"kinda": -intensifierStep, "somewhat": -intensifierStep, "slightly": -intensifierStep, "barely": -intensifierStep,
}

var defaultValence = map[string]float64{
	// positive
	"good": 1.9, "great": 3.1, "awesome": 3.1, "amazing": 2.8, "excellent": 2.7, "wonderful": 2.7,
	"fantastic": 2.6, "love": 3.2, "loved": 2.9, "lovely": 2.8, "like": 1.5, "liked": 1.5, "nice": 1.8,
	"happy": 2.7, "glad": 2.0, "thanks": 1.9, "thank": 1.5, "thx": 1.5, "appreciate": 2.0, "cool": 1.3,
	"fun": 2.3, "funny": 1.9, "beautiful": 2.9, "best": 3.2, "brilliant": 2.8, "perfect": 2.7,
	"enjoy": 2.2, "kind": 2.4, "sweet": 2.0, "helpful": 1.7, "friend": 2.2, "yay": 2.4, "wow": 2.8,
	"smart": 1.7, "cute": 2.0, "hope": 1.9, "win": 2.8, "welcome": 2.0, "pleasure": 2.7, "haha": 2.0,
	"lol": 1.8, "lmao": 2.0, "congrats": 2.4, "excited": 2.3, "proud": 2.1, "impressive": 2.3,
	"ok": 0.9, "okay": 0.9, "yes": 1.7, "agree": 1.5, "correct": 1.4, "right": 0.9,
	// negative
	"bad": -2.5, "terrible": -2.1, "awful": -2.0, "horrible": -2.5, "hate": -2.7, "hated": -3.2,
	"stupid": -2.4, "idiot": -2.3, "dumb": -2.3, "useless": -1.8, "worst": -3.1, "annoying": -1.7,
	"angry": -2.3, "mad": -2.2, "sad": -2.1, "ugly": -2.3, "boring": -1.3, "wrong": -2.1, "sucks": -1.5,
	"suck": -1.9, "shut": -1.0, "trash": -2.2, "garbage": -2.1, "pathetic": -2.6, "disgusting": -2.4,
	"fail": -2.5, "failed": -2.3, "broken": -1.9, "sorry": -0.3, "pointless": -1.7,
	"cringe": -1.8, "lame": -1.8, "loser": -2.4, "moron": -2.2, "ridiculous": -1.5, "worse": -2.1,
	"hurt": -2.4, "kill": -3.7, "die": -2.9, "dead": -3.3, "upset": -1.6, "cry": -2.1, "tired": -1.9,
}
