package sanction

import (
	"fmt"
	"os"
	"strings"

	"scamwatch/internal/model"
)

// Separator sits between the warning and the footer of every reply.
const Separator = "\n\n----------\n\n"

const (
	defaultKeywordText = "Attention, ce message ressemble fortement à une arnaque. " +
		"Ne payez rien, ne communiquez aucun code reçu par SMS et ne partagez pas vos informations personnelles."
	defaultAccountText = "Ceci est le compte d'un arnaqueur. S'il vous demande quoi que ce soit, " +
		"bloquez-le, autrement il tentera de voler votre argent."
	defaultFooter = "Pour plus d'informations sur les arnaques, rejoignez le canal ScamWatch : https://t.me/thescamwatch"
)

// Texts holds the canned reply texts.
type Texts struct {
	Keyword string
	Account string
	Footer  string
}

// DefaultTexts returns the built-in French texts.
func DefaultTexts() Texts {
	return Texts{
		Keyword: defaultKeywordText,
		Account: defaultAccountText,
		Footer:  defaultFooter,
	}
}

// LoadTexts reads the texts from the given files. An empty path keeps the
// built-in text for that slot.
func LoadTexts(keywordPath, accountPath, footerPath string) (Texts, error) {
	t := DefaultTexts()
	for _, slot := range []struct {
		path string
		dst  *string
	}{
		{keywordPath, &t.Keyword},
		{accountPath, &t.Account},
		{footerPath, &t.Footer},
	} {
		if slot.path == "" {
			continue
		}
		data, err := os.ReadFile(slot.path)
		if err != nil {
			return Texts{}, fmt.Errorf("read reply text %s: %w", slot.path, err)
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			return Texts{}, fmt.Errorf("reply text %s is empty", slot.path)
		}
		*slot.dst = text
	}
	return t, nil
}

// Compose builds the reply for s. The keyword warning takes precedence over
// the scammer-account warning whatever the order of the findings.
func (t Texts) Compose(s *model.Sanction) string {
	var body string
	switch {
	case s.Has(model.KindKeyword):
		body = t.Keyword
	case s.Has(model.KindAccount):
		body = t.Account
	}
	return body + Separator + t.Footer
}
