package tools

// Deps are the capabilities the default catalog needs.
type Deps struct {
	Directory TokenDirectory
	Quotes    QuoteSource
	Wallet    Wallet
	Scheduler ActionScheduler
}

// DefaultRegistry creates a Registry with the full DeFi catalog.
// Lookup tools come first; sensitive tools last.
func DefaultRegistry(deps Deps, opts ...RegistryOption) (*Registry, error) {
	registry := NewRegistry(opts...)
	for _, t := range []Tool{
		&SearchTokenTool{Directory: deps.Directory},
		&GetTokenPriceTool{Directory: deps.Directory, Quotes: deps.Quotes},
		&GetWalletBalanceTool{Directory: deps.Directory, Wallet: deps.Wallet},
		&AskForConfirmationTool{},
		&CreateActionTool{Scheduler: deps.Scheduler},
		&TransferSolTool{Wallet: deps.Wallet},
		&TransferTokenTool{Directory: deps.Directory, Wallet: deps.Wallet},
		&SwapTokensTool{Directory: deps.Directory, Quotes: deps.Quotes, Wallet: deps.Wallet},
	} {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
