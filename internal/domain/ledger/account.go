package ledger

// AccountType defines the fundamental accounting classification of an account
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// IsValid checks if the type is a valid AccountType
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity,
		AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// String returns the string representation of AccountType
func (t AccountType) String() string {
	return string(t)
}

// SpecialAccountTag marks accounts with system-level meaning beyond their type
type SpecialAccountTag string

const (
	SpecialAccountNone                   SpecialAccountTag = ""
	SpecialAccountIntercompanyReceivable SpecialAccountTag = "INTERCOMPANY_RECEIVABLE"
	SpecialAccountIntercompanyPayable    SpecialAccountTag = "INTERCOMPANY_PAYABLE"
)

// IsValid checks if the tag is a known SpecialAccountTag
func (t SpecialAccountTag) IsValid() bool {
	switch t {
	case SpecialAccountNone, SpecialAccountIntercompanyReceivable, SpecialAccountIntercompanyPayable:
		return true
	}
	return false
}

// Account is a tenant-scoped ledger account. Accounts live inside the
// ChartOfAccounts aggregate; code uniqueness per tenant is that aggregate's
// invariant, not a property of this struct.
type Account struct {
	Code           string            `json:"code"`
	Name           string            `json:"name"`
	Type           AccountType       `json:"type"`
	ParentCode     string            `json:"parent_code,omitempty"`
	Active         bool              `json:"active"`
	PostingAllowed bool              `json:"posting_allowed"`
	Special        SpecialAccountTag `json:"special,omitempty"`
}

// CanPost returns true if journal lines may reference this account
func (a Account) CanPost() bool {
	return a.Active && a.PostingAllowed
}
