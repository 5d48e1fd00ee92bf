package services

import (
	"strings"
	"unicode"

	"github.com/AnshRaj112/municipal-portal-backend/internal/metrics"
	"go.uber.org/zap"
)

// threatWords are canonical forms; input is cleaned before it is compared.
var threatWords = []string{
	"kill",
	"murder",
	"assault",
	"attack",
	"bomb",
	"burn down",
	"shoot",
	"stab",
	"threat",
	"revenge",
	"beat up",
}

var leetReplacer = strings.NewReplacer(
	"@", "a",
	"4", "a",
	"3", "e",
	"!", "i",
	"1", "i",
	"0", "o",
	"$", "s",
	"5", "s",
	"7", "t",
	"+", "t",
)

// CleanText lowercases text, undoes common character substitutions,
// turns non-letters into single spaces and collapses repeated letters.
func CleanText(text string) string {
	cleaned := leetReplacer.Replace(strings.ToLower(text))

	var b strings.Builder
	var last rune
	lastWasLetter := false
	for _, r := range cleaned {
		isLetter := unicode.IsLetter(r)
		if !isLetter {
			r = ' '
		}
		if isLetter && lastWasLetter && r == last {
			continue
		}
		b.WriteRune(r)
		last = r
		lastWasLetter = isLetter
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// ScreenResult lists the threat terms found in a submission.
type ScreenResult struct {
	Flagged bool
	Terms   []string
}

// ScreenText looks for threatening language. Single words must match a
// whole word so "skill" does not match "kill".
func ScreenText(text string) ScreenResult {
	cleaned := CleanText(text)
	words := make(map[string]struct{})
	for _, w := range strings.Fields(cleaned) {
		words[w] = struct{}{}
	}

	var res ScreenResult
	for _, term := range threatWords {
		// Repeated letters in the term are collapsed the same way as the input.
		canon := CleanText(term)
		if strings.Contains(canon, " ") {
			if strings.Contains(" "+cleaned+" ", " "+canon+" ") {
				res.Terms = append(res.Terms, term)
			}
			continue
		}
		if _, ok := words[canon]; ok {
			res.Terms = append(res.Terms, term)
		}
	}
	res.Flagged = len(res.Terms) > 0
	return res
}

// Screener flags threatening submissions for staff review. Flagged content
// is still accepted.
type Screener struct {
	log *zap.Logger
}

func NewScreener(log *zap.Logger) *Screener {
	return &Screener{log: log}
}

// Screen checks each text, records a metric and logs when any is flagged.
func (s *Screener) Screen(source, subjectID string, texts ...string) ScreenResult {
	var out ScreenResult
	for _, t := range texts {
		r := ScreenText(t)
		out.Terms = append(out.Terms, r.Terms...)
	}
	out.Flagged = len(out.Terms) > 0
	if out.Flagged {
		metrics.ContentFlagged.WithLabelValues(source).Inc()
		s.log.Warn("⚠️ submission flagged for review",
			zap.String("source", source),
			zap.String("subject_id", subjectID),
			zap.Strings("terms", out.Terms),
		)
	}
	return out
}
