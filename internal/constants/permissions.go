package constants

const (
	ViewData           = "view_data"
	InitializeLedger   = "initialize_ledger"
	CreatePaymentAsset = "create_payment_asset"
	CreateProject      = "create_project"
	BuyCredits         = "buy_credits"
	RequestOffset      = "request_offset"
	ReviewOffset       = "review_offset"
	FundAccount        = "fund_account"
	ManageUsers        = "manage_users"
)
