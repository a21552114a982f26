package tools

// Catalog tool names.
const (
	SearchTokenName        = "searchToken"
	GetTokenPriceName      = "getTokenPrice"
	GetWalletBalanceName   = "getWalletBalance"
	AskForConfirmationName = "askForConfirmation"
	CreateActionName       = "createActionTool"
	TransferSolName        = "transferSol"
	TransferTokenName      = "transferToken"
	SwapTokensName         = "swapTokens"
)

// BaselineTool is offered on every turn that uses tools.
const BaselineTool = SearchTokenName

// ConfirmationTool is the tool the model calls to ask the user for assent.
const ConfirmationTool = AskForConfirmationName
