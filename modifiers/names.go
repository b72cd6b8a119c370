package modifiers

import (
	"strings"
	"sync"

	"github.com/normiridium/petrovich"
)

type grammaticalCase int

// Same order as rusnum.Case.
const (
	nominative grammaticalCase = iota
	genitive
	dative
	accusative
	instrumental
	prepositional
)

var caseNames = map[string]grammaticalCase{
	"им": nominative, "именительный": nominative, "nom": nominative, "nominative": nominative,
	"р": genitive, "род": genitive, "родительный": genitive, "gen": genitive, "genitive": genitive,
	"д": dative, "дат": dative, "дательный": dative, "dat": dative, "dative": dative,
	"в": accusative, "вин": accusative, "винительный": accusative, "acc": accusative, "accusative": accusative,
	"т": instrumental, "тв": instrumental, "творительный": instrumental, "ins": instrumental, "instrumental": instrumental,
	"п": prepositional, "пред": prepositional, "предложный": prepositional, "prep": prepositional, "prepositional": prepositional,
}

// suffix used by prepared forms: last_dat, first_gen ...
var caseKeys = [...]string{"nom", "gen", "dat", "acc", "ins", "prep"}

// Gender of a person as far as a name tells it.
type Gender int

const (
	GenderUnknown Gender = iota
	GenderMale
	GenderFemale
)

// GuessGender looks at the patronymic of "Фамилия Имя Отчество", then at
// the surname.
func GuessGender(fullName string) Gender {
	parts := strings.Fields(strings.ToLower(fullName))
	if len(parts) == 0 {
		return GenderUnknown
	}
	if len(parts) >= 3 {
		switch {
		case strings.HasSuffix(parts[2], "ич"):
			return GenderMale
		case strings.HasSuffix(parts[2], "на"):
			return GenderFemale
		}
	}
	for _, s := range []string{"ова", "ева", "ина", "ая"} {
		if strings.HasSuffix(parts[0], s) {
			return GenderFemale
		}
	}
	for _, s := range []string{"ов", "ев", "ин", "ский", "цкий"} {
		if strings.HasSuffix(parts[0], s) {
			return GenderMale
		}
	}
	return GenderUnknown
}

type personName struct {
	last, first, middle string
}

func initial(s string) string {
	for _, r := range s {
		return string(r) + "."
	}
	return ""
}

var nameTokens = map[string]func(personName) string{
	"ф":        func(n personName) string { return n.last },
	"фамилия":  func(n personName) string { return n.last },
	"и":        func(n personName) string { return n.first },
	"имя":      func(n personName) string { return n.first },
	"о":        func(n personName) string { return n.middle },
	"отчество": func(n personName) string { return n.middle },
	"и.":       func(n personName) string { return initial(n.first) },
	"о.":       func(n personName) string { return initial(n.middle) },
	"и.о.":     func(n personName) string { return initial(n.first) + initial(n.middle) },
}

func (n personName) format(layout string) string {
	if blank(layout) {
		layout = "ф и о"
	}
	var out []string
	for _, tok := range strings.Fields(strings.ToLower(layout)) {
		part := tok
		if fn, ok := nameTokens[tok]; ok {
			part = fn(n)
		}
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return strings.Join(out, " ")
}

var loadRules = sync.OnceValues(petrovich.LoadRules)

// Declension puts a full name "Фамилия Имя Отчество" into a grammatical
// case (genitive by default) and lays it out by tokens: ф/фамилия, и/имя,
// о/отчество, и., о., и.о.
//
//	{{ odf_value(fio | declension("дательный", "ф и.о.")) }} → "Сидорову П.П."
//
// A map of ready forms (last_dat, first_gen, middle_nom ...) is used
// instead of the rules when given.
func Declension(v any, opts ...string) string {
	c, layout := genitive, ""
	if len(opts) > 0 {
		if k, ok := caseNames[strings.ToLower(strings.TrimSpace(opts[0]))]; ok {
			c = k
		}
	}
	if len(opts) > 1 {
		layout = opts[1]
	}

	switch forms := v.(type) {
	case map[string]any:
		m := make(map[string]string, len(forms))
		for k, val := range forms {
			m[k] = str(val)
		}
		return preparedName(m, c).format(layout)
	case map[string]string:
		return preparedName(forms, c).format(layout)
	}

	src := strings.TrimSpace(str(v))
	parts := strings.Fields(src)
	if len(parts) == 0 {
		return ""
	}
	var n personName
	n.last = parts[0]
	if len(parts) > 1 {
		n.first = parts[1]
	}
	if len(parts) > 2 {
		n.middle = strings.Join(parts[2:], " ")
	}
	if c == nominative {
		return n.format(layout)
	}

	rules, err := loadRules()
	if err != nil {
		return src
	}
	g := petrovich.Androgynous
	switch GuessGender(src) {
	case GenderMale:
		g = petrovich.Male
	case GenderFemale:
		g = petrovich.Female
	}
	pc := petrovich.Case(c - genitive)
	n.last = rules.InfLastname(n.last, pc, g)
	if n.first != "" {
		n.first = rules.InfFirstname(n.first, pc, g)
	}
	if n.middle != "" {
		n.middle = rules.InfMiddlename(n.middle, pc, g)
	}
	return n.format(layout)
}

func preparedName(m map[string]string, c grammaticalCase) personName {
	pick := func(keys ...string) string {
		for _, k := range keys {
			if v := m[k]; !blank(v) {
				return v
			}
		}
		return ""
	}
	key := caseKeys[c]
	return personName{
		last:   pick("last_"+key, "surname_"+key, "last_nom", "last", "surname"),
		first:  pick("first_"+key, "first_nom", "first"),
		middle: pick("middle_"+key, "patronymic_"+key, "middle_nom", "middle", "patronymic"),
	}
}
