package modifiers

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Joining characters. They are ordinary text for ODF: escaping leaves them
// alone and the office suite keeps the joined parts on one line.
const (
	NBSP     = "\u00A0" // no-break space
	NNBSP    = "\u202F" // narrow no-break space
	NBHyphen = "\u2011" // non-breaking hyphen
)

// Prefix puts p before s unless s is blank.
//
//	{{ odf_value(fio | prefix("гражданин ")) }}
func Prefix(s, p string) string { return affix(s, p, false, false) }

// UniqPrefix is Prefix that skips values already starting with p,
// ignoring case.
//
//	{{ odf_value(org | uniq_prefix("ООО ")) }}
func UniqPrefix(s, p string) string { return affix(s, p, false, true) }

// Postfix puts p after s unless s is blank.
func Postfix(s, p string) string { return affix(s, p, true, false) }

// UniqPostfix is Postfix that skips values already ending with p.
func UniqPostfix(s, p string) string { return affix(s, p, true, true) }

func affix(s, p string, after, once bool) string {
	if blank(s) {
		return ""
	}
	if once {
		have := strings.ToLower(strings.TrimSpace(s))
		want := strings.ToLower(strings.TrimSpace(p))
		if after && strings.HasSuffix(have, want) || !after && strings.HasPrefix(have, want) {
			return s
		}
	}
	if after {
		return s + p
	}
	return p + s
}

// Filled returns out when v holds anything, "" for nil and "".
//
//	{{ odf_value(passport | filled("предъявлен")) }}
func Filled(v any, out string) string {
	if str(v) == "" {
		return ""
	}
	return out
}

// WordReverse reverses the order of words: "Иванов Иван" → "Иван Иванов".
func WordReverse(s string) string {
	words := strings.Fields(s)
	slices.Reverse(words)
	return strings.Join(words, " ")
}

// Nowrap keeps a short code on one line: spaces become no-break spaces and
// hyphens non-breaking hyphens.
//
//	{{ odf_value(case_no | nowrap) }} → "Дело № 15-А" without breaks
func Nowrap(s string) string {
	return strings.NewReplacer(" ", NBSP, "-", NBHyphen).Replace(s)
}

// Compact joins the parts of a number with narrow no-break spaces.
func Compact(s string) string {
	return strings.ReplaceAll(s, " ", NNBSP)
}

// Abbr glues short words and abbreviations ("г.", "ул.", "ООО", "И.") to
// the word after them, so a line never ends with one.
func Abbr(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	wordLen, short, last := 0, false, rune(0)
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !unicode.IsSpace(r) {
			if wordLen == 0 {
				short = true
			}
			if !unicode.IsLetter(r) && r != '.' && r != '-' {
				short = false
			}
			wordLen++
			last = r
			b.WriteString(s[i : i+size])
			i += size
			continue
		}

		end := i
		for end < len(s) {
			r, size := utf8.DecodeRuneInString(s[end:])
			if !unicode.IsSpace(r) {
				break
			}
			end += size
		}
		glue := short && end < len(s) && (wordLen <= 5 || wordLen == 6 && last == '.')
		if glue {
			b.WriteString(NBSP)
		} else {
			b.WriteString(s[i:end])
		}
		wordLen, short = 0, false
		i = end
	}
	return b.String()
}

// Phone formats Russian phone numbers found in s. Mobile numbers use the
// first template, landlines with a four-digit area code the second; $1 is
// the country digit, $2 the code, $3.. the remaining groups.
//
//	{{ odf_value(phone | ru_phone) }} → "+7 (4912) 572-466"
//	{{ odf_value(phone | ru_phone("тел.: +7 ($2) $3-$4-$5")) }}
//
// Anything that is not an 11-digit number starting with 7 or 8 is kept.
func Phone(s string, formats ...string) string {
	mobile, landline := "+7 ($2) $3-$4-$5", "+7 ($2) $3-$4"
	if len(formats) > 0 && formats[0] != "" {
		mobile = formats[0]
	}
	if len(formats) > 1 && formats[1] != "" {
		landline = formats[1]
	}

	s = strings.TrimSpace(s)
	var b strings.Builder
	for i := 0; i < len(s); {
		if !phoneStart(s, i) {
			b.WriteByte(s[i])
			i++
			continue
		}
		end := i + 1
		for end < len(s) && strings.IndexByte("0123456789 -()", s[end]) >= 0 {
			end++
		}
		for end > i && !isDigit(s[end-1]) {
			end--
		}
		b.WriteString(formatPhone(s[i:end], mobile, landline))
		i = end
	}
	return b.String()
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func phoneStart(s string, i int) bool {
	if i > 0 && (isDigit(s[i-1]) || s[i-1] == '+') {
		return false
	}
	if s[i] == '+' {
		return i+1 < len(s) && isDigit(s[i+1])
	}
	return isDigit(s[i])
}

func formatPhone(run, mobile, landline string) string {
	var digits []byte
	for i := 0; i < len(run); i++ {
		if isDigit(run[i]) {
			digits = append(digits, run[i])
		}
	}
	if len(digits) != 11 || digits[0] != '7' && digits[0] != '8' {
		return run
	}

	// A bracketed code decides the kind; without one, area codes start
	// with 1..7 and everything else is mobile.
	codeLen := 3
	if open, closing := strings.IndexByte(run, '('), strings.IndexByte(run, ')'); open >= 0 && closing > open {
		codeLen = len(strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, run[open:closing]))
	} else if digits[1] >= '1' && digits[1] <= '7' {
		codeLen = 4
	}

	d := string(digits)
	if codeLen == 4 {
		return strings.NewReplacer("$1", d[:1], "$2", d[1:5], "$3", d[5:8], "$4", d[8:]).Replace(landline)
	}
	return strings.NewReplacer("$1", d[:1], "$2", d[1:4], "$3", d[4:7], "$4", d[7:9], "$5", d[9:]).Replace(mobile)
}

// Concat joins base with the given parts, the last of which is the
// separator. A part naming a key of data is replaced by its value; blank
// pieces are skipped.
//
//	concat(org_name, "org_address", "department", ", ") → "ООО Рога, Москва, Отдел продаж"
func Concat(data map[string]any, base string, parts ...string) string {
	if len(parts) == 0 {
		return base
	}
	sep := parts[len(parts)-1]

	pieces := make([]string, 0, len(parts))
	if !blank(base) {
		pieces = append(pieces, base)
	}
	for _, p := range parts[:len(parts)-1] {
		key := strings.TrimSpace(p)
		if v, ok := data[key]; ok {
			key = str(v)
		}
		if !blank(key) {
			pieces = append(pieces, key)
		}
	}
	return strings.Join(pieces, sep)
}
