package waclient

import "testing"

func TestToJIDBareDigits(t *testing.T) {
	jid, err := ToJID("15551234567")
	if err != nil {
		t.Fatalf("ToJID: %v", err)
	}
	if jid.String() != "15551234567@s.whatsapp.net" {
		t.Fatalf("expected contact jid suffix, got %s", jid.String())
	}
}

func TestToJIDGroupPassesThrough(t *testing.T) {
	jid, err := ToJID("120363025246064111@g.us")
	if err != nil {
		t.Fatalf("ToJID: %v", err)
	}
	if jid.String() != "120363025246064111@g.us" {
		t.Fatalf("expected group jid unchanged, got %s", jid.String())
	}
}
