package gate

import (
	"regexp"
	"strings"
)

// Verdict is the classification of a user's reply to a confirmation request.
type Verdict int

const (
	Ambiguous Verdict = iota
	Assent
	Refusal
)

func (v Verdict) String() string {
	switch v {
	case Assent:
		return "assent"
	case Refusal:
		return "refusal"
	default:
		return "ambiguous"
	}
}

// Classifier decides whether a reply confirms or refuses a pending action.
type Classifier interface {
	Classify(reply string) Verdict
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(reply string) Verdict

func (f ClassifierFunc) Classify(reply string) Verdict { return f(reply) }

var (
	assentPattern  = regexp.MustCompile(`\b(yes|yep|yeah|yup|y|confirm|confirmed|approve|approved|go ahead|do it|proceed|sure|ok|okay|sounds good|send it|lgtm|absolutely|affirmative)\b`)
	refusalPattern = regexp.MustCompile(`\b(no|nope|nah|n|cancel|cancelled|canceled|stop|don'?t|do not|abort|reject|decline|deny|never ?mind|forget it)\b`)
	hedgePattern   = regexp.MustCompile(`\b(maybe|not sure|unsure|perhaps|what if|wait|hmm+|how much|which|don'?t know|do not know|dunno|idk|no idea)\b|\?`)

	// Conditions and changed terms: the user is not approving the action as asked.
	modifierPattern = regexp.MustCompile(`\b(but|instead|after|before|change|make it|only if|unless|except|until|once|other|different)\b|\d|[1-9a-hj-np-z]{32,44}`)
)

// KeywordClassifier matches short assent and refusal phrases. Questions,
// hedges and replies that change the terms are ambiguous, as is a reply
// carrying both signals.
type KeywordClassifier struct{}

func (KeywordClassifier) Classify(reply string) Verdict {
	text := strings.ToLower(strings.TrimSpace(reply))
	if text == "" || hedgePattern.MatchString(text) || modifierPattern.MatchString(text) {
		return Ambiguous
	}
	assent := assentPattern.MatchString(text)
	refusal := refusalPattern.MatchString(text)
	switch {
	case assent && !refusal:
		return Assent
	case refusal && !assent:
		return Refusal
	default:
		return Ambiguous
	}
}
