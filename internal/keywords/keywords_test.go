package keywords

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"collegecontent/internal/core"
)

func TestParseCSV(t *testing.T) {
	doc := "rank,keyword\n1,IIT Bombay fees\n2, iit bombay FEES \n3,JEE cutoff\n4,\n"

	got, err := ParseCSV(strings.NewReader(doc), "Keyword")
	if err != nil {
		t.Fatalf("ParseCSV error: %v", err)
	}
	want := []string{"IIT Bombay fees", "JEE cutoff"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	got, err = ParseCSV(strings.NewReader(doc), "missing")
	if err != nil {
		t.Fatalf("ParseCSV error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"1", "2", "3", "4"}) {
		t.Errorf("Expected first column fallback, got %v", got)
	}

	if got, err := ParseCSV(strings.NewReader(""), ""); err != nil || got != nil {
		t.Errorf("Expected nothing from empty input, got %v, %v", got, err)
	}
	if _, err := ParseCSV(strings.NewReader("a\n\"unterminated\n"), ""); !errors.Is(err, core.ErrInputMalformed) {
		t.Errorf("Expected InputMalformed, got %v", err)
	}
}

func TestParseText(t *testing.T) {
	got, err := ParseText([]byte("NIRF ranking\r\nNAAC A++\n\nnirf RANKING\n"))
	if err != nil {
		t.Fatalf("ParseText error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"NIRF ranking", "NAAC A++"}) {
		t.Errorf("Unexpected keywords: %v", got)
	}

	got, _ = ParseText([]byte("hostel, placements ,fees"))
	if !reflect.DeepEqual(got, []string{"hostel", "placements", "fees"}) {
		t.Errorf("Expected comma split for single line, got %v", got)
	}

	if _, err := ParseText([]byte{0xff, 0xfe}); !errors.Is(err, core.ErrInputMalformed) {
		t.Errorf("Expected InputMalformed for invalid UTF-8, got %v", err)
	}
}

func TestParseManual(t *testing.T) {
	if got := ParseManual("a, b,,A"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Unexpected comma parse: %v", got)
	}
	if got := ParseManual("one\ntwo"); !reflect.DeepEqual(got, []string{"one", "two"}) {
		t.Errorf("Unexpected newline parse: %v", got)
	}
	if got := ParseManual("   "); got != nil {
		t.Errorf("Expected nil for blank input, got %v", got)
	}
}

func TestFormatForPrompt(t *testing.T) {
	if FormatForPrompt(nil, 0) != "" {
		t.Error("Expected empty block for no keywords")
	}

	var kws []string
	for i := 0; i < 30; i++ {
		kws = append(kws, fmt.Sprintf("kw%d", i))
	}
	got := FormatForPrompt(kws, 0)
	if !strings.HasPrefix(got, PromptHeader+"\n- kw0\n") {
		t.Errorf("Unexpected block start: %q", got)
	}
	if n := strings.Count(got, "\n- "); n != MaxPromptKeywords {
		t.Errorf("Expected %d keywords, got %d", MaxPromptKeywords, n)
	}
	if strings.Contains(got, "kw20") {
		t.Error("Expected keywords past the limit to be dropped")
	}
}
