package notify

import "strings"

// Class is the retry category of a provider error.
type Class int

const (
	ClassTransient  Class = iota // network/timeout style, retry
	ClassRateLimit               // provider throttling, retry
	ClassValidation              // bad recipient/payload, never retry
	ClassPermanent               // everything else we refuse to retry
)

func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassRateLimit:
		return "rate_limit"
	case ClassValidation:
		return "validation"
	case ClassPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Retryable reports whether an error of this class deserves another
// attempt (budget permitting).
func (c Class) Retryable() bool {
	return c == ClassTransient || c == ClassRateLimit
}

// Rule matches a lowercase substring of the provider error message to a
// class. Providers return free text, so substring rules are the contract
// we actually have; keeping them in a table makes them swappable per
// provider instead of scattered through the send path.
type Rule struct {
	Substr string
	Class  Class
}

// Classifier assigns a Class to raw provider errors using an ordered
// rule table. The first matching rule wins; unmatched errors get the
// fallback class.
type Classifier struct {
	rules    []Rule
	fallback Class
}

// NewClassifier builds a classifier from an ordered rule table.
func NewClassifier(rules []Rule, fallback Class) *Classifier {
	return &Classifier{rules: rules, fallback: fallback}
}

// DefaultClassifier covers the error text our providers are known to
// return. Validation rules come first so a malformed recipient is never
// retried even when the message also mentions a timeout.
func DefaultClassifier() *Classifier {
	return NewClassifier([]Rule{
		{Substr: "invalid email", Class: ClassValidation},
		{Substr: "invalid phone", Class: ClassValidation},
		{Substr: "invalid recipient", Class: ClassValidation},
		{Substr: "not verified", Class: ClassValidation},
		{Substr: "missing recipient", Class: ClassValidation},
		{Substr: "429", Class: ClassRateLimit},
		{Substr: "rate limit", Class: ClassRateLimit},
		{Substr: "throttl", Class: ClassRateLimit},
		{Substr: "too many requests", Class: ClassRateLimit},
		{Substr: "econnreset", Class: ClassTransient},
		{Substr: "etimedout", Class: ClassTransient},
		{Substr: "econnrefused", Class: ClassTransient},
		{Substr: "connection", Class: ClassTransient},
		{Substr: "timeout", Class: ClassTransient},
		{Substr: "timed out", Class: ClassTransient},
		{Substr: "unavailable", Class: ClassTransient},
	}, ClassTransient)
}

// Classify assigns a class to a provider error.
func (c *Classifier) Classify(err error) Class {
	if err == nil {
		return ClassPermanent
	}
	msg := strings.ToLower(err.Error())
	for _, r := range c.rules {
		if strings.Contains(msg, r.Substr) {
			return r.Class
		}
	}
	return c.fallback
}
