package detect

import "sort"

// Consent wording by language. Matching is case-insensitive substring over
// the region text; a hit in any language counts. The lists favor phrases a
// notice is unlikely to share with ordinary page copy.
var consentKeywords = map[string][]string{
	"en": {
		"cookie",
		"cookies",
		"consent",
		"we use cookies",
		"accept all",
		"accept cookies",
		"privacy policy",
		"your privacy",
		"manage preferences",
		"similar technologies",
		"personalized ads",
	},
	"fr": {
		"cookies",
		"consentement",
		"nous utilisons des cookies",
		"tout accepter",
		"accepter les cookies",
		"politique de confidentialité",
		"gérer mes choix",
		"traceurs",
	},
	"de": {
		"cookies",
		"einwilligung",
		"wir verwenden cookies",
		"alle akzeptieren",
		"cookies akzeptieren",
		"datenschutzerklärung",
		"einstellungen verwalten",
		"zustimmen",
	},
	"es": {
		"cookies",
		"consentimiento",
		"utilizamos cookies",
		"aceptar todas",
		"aceptar cookies",
		"política de privacidad",
		"gestionar preferencias",
	},
}

// acceptWords marks clickables that likely grant consent, used to order the
// click phase so the accepting button is tried early.
var acceptWords = []string{
	"accept", "agree", "allow", "got it", "ok",
	"accepter", "akzeptieren", "zustimmen", "aceptar",
}

// AllKeywords returns the deduplicated keyword set across every language,
// lowercased, for in-page pre-selection.
func AllKeywords() []string {
	seen := make(map[string]bool)
	var out []string
	for _, words := range consentKeywords {
		for _, w := range words {
			if !seen[w] {
				seen[w] = true
				out = append(out, w)
			}
		}
	}
	sort.Strings(out)
	return out
}
