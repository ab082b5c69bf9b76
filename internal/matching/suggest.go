package matching

import (
	"strings"

	"reconciliation-lifecycle/internal/models"
)

// Rule-based suggestions for items no pass could pair. Statement-only items
// usually mean the ledger is missing an entry, so a correcting journal entry
// is proposed; ledger-only items usually mean a timing difference.

func suggestForStatement(item models.LineItem) models.UnmatchedItem {
	unmatched := models.UnmatchedItem{
		Item: item,
		Side: models.SideStatement,
	}

	desc := strings.ToLower(item.Description)
	switch {
	case item.Amount.Sign() < 0 && containsAny(desc, "fee", "charge", "commission", "service"):
		unmatched.Reason = "Bank fee not recorded in the ledger"
		unmatched.SuggestedAction = "Post the suggested fee entry"
		unmatched.SuggestedEntry = &models.JournalEntry{
			Description:   "Record bank fee: " + item.Description,
			DebitAccount:  "Bank Fees",
			CreditAccount: "Cash",
			Amount:        item.Amount.Abs(),
		}
	case item.Amount.Sign() > 0 && containsAny(desc, "interest"):
		unmatched.Reason = "Interest income not recorded in the ledger"
		unmatched.SuggestedAction = "Post the suggested interest entry"
		unmatched.SuggestedEntry = &models.JournalEntry{
			Description:   "Record interest income: " + item.Description,
			DebitAccount:  "Cash",
			CreditAccount: "Interest Income",
			Amount:        item.Amount.Abs(),
		}
	default:
		unmatched.Reason = "No matching ledger entry found"
		unmatched.SuggestedAction = "Verify the ledger upload or record a journal entry for this transaction"
	}
	return unmatched
}

func suggestForLedger(item models.LineItem) models.UnmatchedItem {
	unmatched := models.UnmatchedItem{
		Item: item,
		Side: models.SideLedger,
	}

	desc := strings.ToLower(item.Description)
	switch {
	case containsAny(desc, "check", "cheque"):
		unmatched.Reason = "Ledger entry has not cleared the bank"
		unmatched.SuggestedAction = "Likely an outstanding check; verify against next period's statement"
	default:
		unmatched.Reason = "No matching statement transaction found"
		unmatched.SuggestedAction = "Possible timing difference; verify against next period's statement or confirm the entry"
	}
	return unmatched
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
