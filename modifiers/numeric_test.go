package modifiers

import (
	"strings"
	"testing"

	"golang.org/x/text/language"
)

func TestNumeral(t *testing.T) {
	tests := []struct {
		name string
		in   any
		opts []string
		want string
	}{
		{"default", 8, nil, "восемь"},
		{"feminine prepositional", 2, []string{"женский", "предложный"}, "двух"},
		{"feminine genitive", 2, []string{"ж", "род"}, "двух"},
		{"dative", 35147, []string{"дательный"}, "тридцати пяти тысячам ста сорока семи"},
		{"instrumental eight", 8, []string{"творительный", "восемью"}, "восемью"},
		{"zero nol", 0, []string{"ноль"}, "ноль"},
		{"zero nul", 0, []string{"нуль"}, "нуль"},
		{"string input", "8", nil, "восемь"},
		{"not a number", "восемь", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Numeral(tt.in, tt.opts...); got != tt.want {
				t.Errorf("Numeral(%v, %q) = %q, want %q", tt.in, tt.opts, got, tt.want)
			}
		})
	}
}

func TestPlural(t *testing.T) {
	days := []string{"день", "дня", "дней"}
	tests := []struct {
		tag   language.Tag
		n     any
		forms []string
		want  string
	}{
		{language.Russian, 1, days, "день"},
		{language.Russian, 3, days, "дня"},
		{language.Russian, 5, days, "дней"},
		{language.Russian, 11, days, "дней"},
		{language.Russian, 21, days, "день"},
		{language.Russian, -2, days, "дня"},
		{language.Und, 5, days, "дней"},
		{language.Und, 2, nil, "сотрудника"},
		{language.English, 1, []string{"file", "files"}, "file"},
		{language.English, 2, []string{"file", "files"}, "files"},
		{language.English, 0, []string{"file", "files"}, "files"},
		{language.Russian, "x", days, ""},
	}
	for _, tt := range tests {
		if got := Plural(tt.tag, tt.n, tt.forms...); got != tt.want {
			t.Errorf("Plural(%v, %v) = %q, want %q", tt.tag, tt.n, got, tt.want)
		}
	}
}

func TestSignPadRoman(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"sign positive", Sign(5), "+5"},
		{"sign negative", Sign(-3), "-3"},
		{"sign zero", Sign(0), "0"},
		{"sign fraction", Sign("1,5"), "+1.5"},
		{"sign text", Sign("н/д"), "н/д"},
		{"pad left", PadLeft(42, 5, "0"), "00042"},
		{"pad right", PadRight(42, 5, "x"), "42xxx"},
		{"pad runes", PadLeft("ок", 4, "—"), "——ок"},
		{"pad wide fill", PadRight("a", 4, "xy"), "axyx"},
		{"pad no room", PadLeft("12345", 3, "0"), "12345"},
		{"pad empty fill", PadLeft("1", 3, ""), "1"},
		{"roman", Roman(4), "IV"},
		{"roman big", Roman(2024), "MMXXIV"},
		{"roman zero", Roman(0), ""},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestMoney(t *testing.T) {
	tests := []struct {
		name string
		tag  language.Tag
		in   any
		opts []string
		want string
	}{
		{"english", language.English, 1234.5, nil, "1,234.50"},
		{"german", language.German, 1234.5, nil, "1.234,50"},
		{"string amount", language.English, "12000,05", nil, "12,000.05"},
		{"whole part", language.English, 1234.56, []string{"int"}, "1,234"},
		{"whole part ru key", language.English, 1234.56, []string{"целое"}, "1,234"},
		{"format whole", language.English, 1234.56, []string{"%s ₽"}, "1,234 ₽"},
		{"format with cents", language.English, 1234.56, []string{"%s руб. %02d коп."}, "1,234 руб. 56 коп."},
		{"cents round up", language.English, 9.999, []string{"%s.%02d"}, "10.00"},
		{"not a number", language.English, "по договору", nil, "по договору"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Money(tt.tag, tt.in, tt.opts...); got != tt.want {
				t.Errorf("Money(%v, %v, %q) = %q, want %q", tt.tag, tt.in, tt.opts, got, tt.want)
			}
		})
	}
}

func TestMoneyRussianKeepsOneLine(t *testing.T) {
	got := Money(language.Russian, 1234.5)
	if strings.Contains(got, " ") {
		t.Errorf("Money(ru) = %q, has a breaking space", got)
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == ',' {
			return r
		}
		return -1
	}, got)
	if digits != "1234,50" {
		t.Errorf("Money(ru) = %q, want 1234,50 with ru separators", got)
	}
}
