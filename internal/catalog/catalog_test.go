package catalog_test

import (
	"testing"

	"github.com/blueledger/mpesa-ingest-go/internal/catalog"
	"github.com/blueledger/mpesa-ingest-go/internal/domain"
)

const balanceTail = " New M-PESA balance is Ksh12,345.00"

func TestClassify_PeerReceived(t *testing.T) {
	cat := catalog.NewMpesaCatalog()

	body := "QGH7XYZ12 Confirmed. You have received Ksh1,500.00 from JANE DOE 254712345678 on 3/14/24 at 2:05 PM." + balanceTail
	ex, ok := cat.Classify(body)
	if !ok {
		t.Fatal("expected a match")
	}

	if ex.Template != "peer-received" {
		t.Errorf("expected template 'peer-received', got '%s'", ex.Template)
	}
	if ex.Direction != domain.Income {
		t.Errorf("expected income, got '%s'", ex.Direction)
	}
	if ex.ReferenceCode != "QGH7XYZ12" {
		t.Errorf("expected reference code 'QGH7XYZ12', got '%s'", ex.ReferenceCode)
	}
	if ex.Amount != "1,500.00" {
		t.Errorf("expected amount '1,500.00', got '%s'", ex.Amount)
	}
	if ex.Counterparty != "JANE DOE" {
		t.Errorf("expected counterparty 'JANE DOE', got '%s'", ex.Counterparty)
	}
	if ex.Date != "3/14/24" {
		t.Errorf("expected date '3/14/24', got '%s'", ex.Date)
	}
	if ex.Time != "2:05 PM" {
		t.Errorf("expected time '2:05 PM', got '%s'", ex.Time)
	}
	if ex.BalanceAfter != "12,345.00" {
		t.Errorf("expected balance '12,345.00', got '%s'", ex.BalanceAfter)
	}
	if ex.Description != "Received from JANE DOE" {
		t.Errorf("expected derived description, got '%s'", ex.Description)
	}
}

func TestClassify_PeerSent(t *testing.T) {
	cat := catalog.NewMpesaCatalog()

	body := "QAB1CDE34 Confirmed. Ksh250.00 sent to JOHN KAMAU 254700111222 on 1/2/24 at 9:15 AM." + balanceTail
	ex, ok := cat.Classify(body)
	if !ok {
		t.Fatal("expected a match")
	}

	if ex.Template != "peer-sent" {
		t.Errorf("expected template 'peer-sent', got '%s'", ex.Template)
	}
	if ex.Direction != domain.Expense {
		t.Errorf("expected expense, got '%s'", ex.Direction)
	}
	if ex.Counterparty != "JOHN KAMAU" {
		t.Errorf("expected counterparty 'JOHN KAMAU', got '%s'", ex.Counterparty)
	}
	if ex.Description != "Sent to JOHN KAMAU" {
		t.Errorf("unexpected description '%s'", ex.Description)
	}
}

func TestClassify_BillPaymentPrecedesMerchantPayment(t *testing.T) {
	cat := catalog.NewMpesaCatalog()

	// This body matches both the bill payment and the plain merchant
	// payment templates; the earlier registration must win.
	body := "QFF9GHI56 Confirmed. Ksh3,200.00 paid to KPLC PREPAID for account 54401234567 on 5/6/23 at 6:45 PM." + balanceTail
	ex, ok := cat.Classify(body)
	if !ok {
		t.Fatal("expected a match")
	}

	if ex.Template != "bill-payment" {
		t.Errorf("expected template 'bill-payment', got '%s'", ex.Template)
	}
	if ex.Counterparty != "KPLC PREPAID" {
		t.Errorf("expected counterparty 'KPLC PREPAID', got '%s'", ex.Counterparty)
	}
	if ex.Description != "Paid to KPLC PREPAID (Acc: 54401234567)" {
		t.Errorf("unexpected description '%s'", ex.Description)
	}
}

func TestClassify_MerchantPayment(t *testing.T) {
	cat := catalog.NewMpesaCatalog()

	body := "QJJ2KLM78 Confirmed. Ksh780.00 paid to NAIVAS SUPERMARKET on 7/8/24 at 12:30 PM." + balanceTail
	ex, ok := cat.Classify(body)
	if !ok {
		t.Fatal("expected a match")
	}

	if ex.Template != "merchant-payment" {
		t.Errorf("expected template 'merchant-payment', got '%s'", ex.Template)
	}
	if ex.Description != "Paid to NAIVAS SUPERMARKET" {
		t.Errorf("unexpected description '%s'", ex.Description)
	}
}

func TestClassify_AirtimePurchase(t *testing.T) {
	cat := catalog.NewMpesaCatalog()

	body := "QNN5OPQ90 Confirmed. Ksh100.00 airtime bought for 254733999888 on 9/10/24 at 8:00 AM." + balanceTail
	ex, ok := cat.Classify(body)
	if !ok {
		t.Fatal("expected a match")
	}

	if ex.Template != "airtime-purchase" {
		t.Errorf("expected template 'airtime-purchase', got '%s'", ex.Template)
	}
	// Counterparty is synthesized from the recipient phone number.
	if ex.Counterparty != "Airtime for 254733999888" {
		t.Errorf("unexpected counterparty '%s'", ex.Counterparty)
	}
	if ex.Description != "Airtime for 254733999888" {
		t.Errorf("unexpected description '%s'", ex.Description)
	}
}

func TestClassify_AgentWithdrawal(t *testing.T) {
	cat := catalog.NewMpesaCatalog()

	body := "QRR8STU12 Confirmed. Ksh5,000.00 withdrawn from agent 104545 at 288100 on 11/12/24 at 4:20 PM." + balanceTail
	ex, ok := cat.Classify(body)
	if !ok {
		t.Fatal("expected a match")
	}

	if ex.Template != "agent-withdrawal" {
		t.Errorf("expected template 'agent-withdrawal', got '%s'", ex.Template)
	}
	if ex.Counterparty != "Agent 104545" {
		t.Errorf("unexpected counterparty '%s'", ex.Counterparty)
	}
	if ex.Description != "Withdrawal from Agent 104545" {
		t.Errorf("unexpected description '%s'", ex.Description)
	}
}

func TestClassify_Unmatched(t *testing.T) {
	cat := catalog.NewMpesaCatalog()

	bodies := []string{
		"Congratulations! You have been selected for a free holiday. Reply YES to claim.",
		"Dear customer, your M-PESA statement is ready.",
		"",
	}
	for _, body := range bodies {
		if _, ok := cat.Classify(body); ok {
			t.Errorf("expected no match for %q", body)
		}
	}
}

func TestClassify_MustAnchorAtStart(t *testing.T) {
	cat := catalog.NewMpesaCatalog()

	body := "FWD: QGH7XYZ12 Confirmed. You have received Ksh1,500.00 from JANE DOE 254712345678 on 3/14/24 at 2:05 PM." + balanceTail
	if _, ok := cat.Classify(body); ok {
		t.Error("expected no match for a body with a prefix before the reference code")
	}
}

func TestIsProviderMessage(t *testing.T) {
	cases := []struct {
		name string
		msg  domain.RawMessage
		want bool
	}{
		{"origin with dash", domain.RawMessage{Origin: "M-PESA", Body: "anything"}, true},
		{"origin without dash", domain.RawMessage{Origin: "MPESA", Body: "anything"}, true},
		{"marker in body", domain.RawMessage{Origin: "21456", Body: "QX1 Confirmed. New M-PESA balance is Ksh10.00"}, true},
		{"unrelated sender", domain.RawMessage{Origin: "BANKCO", Body: "Your OTP is 123456"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := catalog.IsProviderMessage(tc.msg); got != tc.want {
				t.Errorf("IsProviderMessage(%+v) = %v, want %v", tc.msg, got, tc.want)
			}
		})
	}
}
