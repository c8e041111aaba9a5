package session

import (
	"reflect"
	"testing"

	. "github.com/stevegt/goadapt"
)

func TestTranscriptRoundTrip(t *testing.T) {
	tr := NewTranscript().
		Append(UserMessage("What is 2+2?")).
		Append(AssistantMessage("4")).
		Append(UserMessage("  spaces and \"quotes\" \n")).
		Append(AssistantMessage(""))

	data, err := MarshalTranscript(tr)
	Tassert(t, err == nil, "marshal: %v", err)

	got, err := UnmarshalTranscript(data)
	Tassert(t, err == nil, "unmarshal: %v", err)
	Tassert(t, reflect.DeepEqual(got.Messages(), tr.Messages()), "round trip changed transcript: %v vs %v", got.Messages(), tr.Messages())
}

func TestTranscriptWireFormat(t *testing.T) {
	data, err := MarshalTranscript(NewTranscript(UserMessage("hi")))
	Tassert(t, err == nil, "marshal: %v", err)
	Tassert(t, string(data) == `[{"sender":"user","text":"hi"}]`, "unexpected encoding: %s", data)

	empty, err := MarshalTranscript(Transcript{})
	Tassert(t, err == nil, "marshal empty: %v", err)
	Tassert(t, string(empty) == `[]`, "empty transcript should encode as []: %s", empty)
}

func TestUnmarshalTranscriptEdgeCases(t *testing.T) {
	for _, in := range []string{"", "null", "[]"} {
		tr, err := UnmarshalTranscript([]byte(in))
		Tassert(t, err == nil, "%q: %v", in, err)
		Tassert(t, tr.Len() == 0, "%q should decode to empty transcript", in)
	}

	_, err := UnmarshalTranscript([]byte(`{not json`))
	Tassert(t, err != nil, "malformed JSON should fail")

	_, err = UnmarshalTranscript([]byte(`[{"sender":"robot","text":"x"}]`))
	Tassert(t, err != nil, "unknown sender should fail")
}

func TestAppendDoesNotAlias(t *testing.T) {
	base := NewTranscript(UserMessage("a"))
	one := base.Append(AssistantMessage("b"))
	two := base.Append(AssistantMessage("c"))

	Tassert(t, base.Len() == 1, "base mutated: %d", base.Len())
	last1, _ := one.Last()
	last2, _ := two.Last()
	Tassert(t, last1.Text == "b" && last2.Text == "c", "appends aliased: %q %q", last1.Text, last2.Text)

	msgs := one.Messages()
	msgs[0].Text = "changed"
	first := one.Messages()[0]
	Tassert(t, first.Text == "a", "Messages returned internal slice")
}

func TestThemeToggle(t *testing.T) {
	Tassert(t, ThemeLight.Toggle() == ThemeDark, "light should toggle to dark")
	Tassert(t, ThemeDark.Toggle().Toggle() == ThemeDark, "double toggle should be identity")

	for _, th := range []Theme{ThemeLight, ThemeDark} {
		data, err := MarshalTheme(th)
		Tassert(t, err == nil, "marshal: %v", err)
		got, err := UnmarshalTheme(data)
		Tassert(t, err == nil && got == th, "theme round trip: %v %v", got, err)
	}

	def, err := UnmarshalTheme(nil)
	Tassert(t, err == nil && def == DefaultTheme, "empty should yield default theme")

	_, err = UnmarshalTheme([]byte(`"sepia"`))
	Tassert(t, err != nil, "unknown theme should fail")
}
