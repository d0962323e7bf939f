package pii

import "testing"

// ─── Email and IBAN scenarios ──────────────────────────────────────────────

func TestScan_Email(t *testing.T) {
	res := Scan("Send invoice to customer@example.com", nil)
	if !res.Detected {
		t.Fatal("expected detection")
	}
	if res.Types[TypeEmail] != 1 {
		t.Errorf("email count = %d, want 1", res.Types[TypeEmail])
	}
}

func TestScan_IBAN(t *testing.T) {
	res := Scan("Transfer to NL91ABNA0417164300 please", nil)
	if !res.Detected {
		t.Fatal("expected detection")
	}
	if res.Types[TypeIBAN] != 1 {
		t.Errorf("iban count = %d, want 1", res.Types[TypeIBAN])
	}
}

func TestScan_NoPII(t *testing.T) {
	res := Scan("What is 2 + 2?", nil)
	if res.Detected {
		t.Errorf("unexpected detection: %+v", res.Types)
	}
}

// ─── BSN mod-11 checksum ────────────────────────────────────────────────────

func TestIsValidBSN(t *testing.T) {
	// 111222333: 1*9+1*8+1*7+2*6+2*5+2*4+3*3+3*2+3*-1 = 9+8+7+12+10+8+9+6-3 = 66, divisible by 11
	if !isValidBSN("111222333") {
		t.Error("expected valid BSN")
	}
	if isValidBSN("123456789") {
		t.Error("expected invalid BSN")
	}
}

// ─── Credit card Luhn check ─────────────────────────────────────────────────

func TestLuhnValid(t *testing.T) {
	if !luhnValid("4111111111111111") {
		t.Error("expected valid test Visa number")
	}
	if luhnValid("4111111111111112") {
		t.Error("expected invalid number to fail")
	}
}

func TestScan_CreditCard(t *testing.T) {
	res := Scan("My card is 4111 1111 1111 1111, charge it", nil)
	if res.Types[TypeCreditCard] != 1 {
		t.Errorf("credit_card count = %d, want 1", res.Types[TypeCreditCard])
	}
}

// ─── Fail-open NER probe ────────────────────────────────────────────────────

func TestScan_NameProbePanicFailsOpen(t *testing.T) {
	panicProbe := func(text string) (int, bool) {
		panic("ner model crashed")
	}
	res := Scan("hello there", panicProbe)
	if _, ok := res.Types[TypePersonName]; ok {
		t.Error("expected person_name absent after probe panic")
	}
}
