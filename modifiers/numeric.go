package modifiers

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/normiridium/rusnum"
	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var numeralOptions = map[string]rusnum.Option{
	"м": rusnum.WithGender(rusnum.Masc), "муж": rusnum.WithGender(rusnum.Masc), "мужской": rusnum.WithGender(rusnum.Masc),
	"masc": rusnum.WithGender(rusnum.Masc), "masculine": rusnum.WithGender(rusnum.Masc),
	"ж": rusnum.WithGender(rusnum.Fem), "жен": rusnum.WithGender(rusnum.Fem), "женский": rusnum.WithGender(rusnum.Fem),
	"fem": rusnum.WithGender(rusnum.Fem), "feminine": rusnum.WithGender(rusnum.Fem),
	"ср": rusnum.WithGender(rusnum.Neut), "средний": rusnum.WithGender(rusnum.Neut),
	"neut": rusnum.WithGender(rusnum.Neut), "neuter": rusnum.WithGender(rusnum.Neut),

	"восемью": rusnum.WithInsEightAlt(true), "alt8": rusnum.WithInsEightAlt(true),
	"восьмью": rusnum.WithInsEightAlt(false), "std8": rusnum.WithInsEightAlt(false),

	"нуль": rusnum.WithNullStyle(rusnum.ZeroNul), "nul": rusnum.WithNullStyle(rusnum.ZeroNul),
	"ноль": rusnum.WithNullStyle(rusnum.ZeroNol), "nol": rusnum.WithNullStyle(rusnum.ZeroNol),
}

// Numeral spells an integer in Russian words. Options set the gender, the
// grammatical case, the instrumental "восемью" and the zero spelling, in
// any order:
//
//	{{ odf_value(count | numeral("женский", "предложный")) }} → "одной"
//	{{ odf_value(35147 | numeral("дательный")) }} → "тридцати пяти тысячам ста сорока семи"
func Numeral(v any, opts ...string) string {
	n, ok := integer(v)
	if !ok {
		return ""
	}
	var options []rusnum.Option
	for _, o := range opts {
		key := strings.ToLower(strings.TrimSpace(o))
		if c, ok := caseNames[key]; ok {
			options = append(options, rusnum.WithCase(rusnum.Case(c)))
		} else if opt, ok := numeralOptions[key]; ok {
			options = append(options, opt)
		}
	}
	return rusnum.ToWords(n, options...)
}

var defaultPluralForms = []string{"сотрудник", "сотрудника", "сотрудников"}

// Plural picks the word form for the number v by the plural rules of the
// locale. Forms are given as one, few, many (Russian) or one, other:
//
//	{{ odf_value(days | plural("день", "дня", "дней")) }}
//	{{ odf_value(files | plural("file", "files")) }}
//
// Without a locale Russian rules apply.
func Plural(tag language.Tag, v any, forms ...string) string {
	n, ok := integer(v)
	if !ok {
		return ""
	}
	if len(forms) == 0 {
		forms = defaultPluralForms
	}
	if n < 0 {
		n = -n
	}

	i := len(forms) - 1
	switch plural.Cardinal.MatchPlural(wordsTag(tag), n, 0, 0, 0, 0) {
	case plural.One:
		i = 0
	case plural.Two, plural.Few:
		i = min(1, len(forms)-1)
	}
	return forms[i]
}

// Sign prefixes positive numbers with "+".
func Sign(v any) string {
	f, ok := toFloat(v)
	if !ok {
		return str(v)
	}
	if f > 0 {
		return "+" + formatFloat(f)
	}
	return formatFloat(f)
}

// PadLeft pads the text of v on the left with fill up to width runes.
//
//	{{ odf_value(num | pad_left(5, "0")) }} → "00042"
func PadLeft(v any, width int, fill string) string { return pad(str(v), width, fill, true) }

// PadRight pads on the right.
func PadRight(v any, width int, fill string) string { return pad(str(v), width, fill, false) }

func pad(s string, width int, fill string, left bool) string {
	have, unit := utf8.RuneCountInString(s), utf8.RuneCountInString(fill)
	if unit == 0 || have >= width {
		return s
	}
	padding := []rune(strings.Repeat(fill, (width-have+unit-1)/unit))[:width-have]
	if left {
		return string(padding) + s
	}
	return s + string(padding)
}

// Money formats an amount with the grouping and decimal symbols of the
// locale and two decimals. Russian groups with no-break spaces, so an
// amount never wraps inside a table cell.
//
//	{{ odf_value(sum | money) }}              → "1 234,56"
//	{{ odf_value(sum | money("int")) }}       → "1 234"
//	{{ odf_value(sum | money("%s руб. %02d коп.")) }} → "1 234 руб. 56 коп."
//
// A format with a single verb receives the whole part only.
func Money(tag language.Tag, v any, opts ...string) string {
	f, ok := toFloat(v)
	if !ok {
		return str(v)
	}
	whole := math.Trunc(f)
	cents := int64(math.Round(math.Abs(f-whole) * 100))
	if cents == 100 {
		whole += math.Copysign(1, f)
		cents = 0
	}

	p := message.NewPrinter(tag)
	wholeText := p.Sprint(number.Decimal(whole, number.Scale(0)))

	format := ""
	if len(opts) > 0 {
		format = strings.TrimSpace(opts[0])
	}
	switch {
	case strings.EqualFold(format, "int"), format == "целое":
		return wholeText
	case strings.Count(format, "%") == 1:
		return fmt.Sprintf(format, wholeText)
	case strings.Contains(format, "%"):
		return fmt.Sprintf(format, wholeText, cents)
	}
	return p.Sprint(number.Decimal(f, number.Scale(2)))
}

var romanDigits = []struct {
	value  int
	symbol string
}{
	{1000, "M"}, {900, "CM"}, {500, "D"}, {400, "CD"},
	{100, "C"}, {90, "XC"}, {50, "L"}, {40, "XL"},
	{10, "X"}, {9, "IX"}, {5, "V"}, {4, "IV"}, {1, "I"},
}

// Roman writes a positive integer in Roman numerals.
func Roman(v any) string {
	n, ok := integer(v)
	if !ok || n <= 0 {
		return ""
	}
	var b strings.Builder
	for _, d := range romanDigits {
		for ; n >= d.value; n -= d.value {
			b.WriteString(d.symbol)
		}
	}
	return b.String()
}

// toFloat reads v as a float: any Go number, or a string with either
// decimal separator.
func toFloat(v any) (float64, bool) {
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
		return f, err == nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func integer(v any) (int, bool) {
	f, ok := toFloat(v)
	return int(f), ok
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// wordsTag is the locale used for words. The modifiers speak Russian
// unless told otherwise.
func wordsTag(tag language.Tag) language.Tag {
	if tag.IsRoot() {
		return language.Russian
	}
	return tag
}
