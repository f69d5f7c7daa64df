package simulator

import "github.com/zono819/tickpulse/internal/domain/entity"

// defaultSymbols is the built-in instrument catalogue.
// Volatility is annualized and roughly calibrated per asset class.
var defaultSymbols = []entity.SymbolConfig{
	// crypto
	{Symbol: "BTC/USD", Name: "Bitcoin", BasePrice: 97_420.50, Volatility: 0.65, Icon: "₿", Category: entity.CategoryCrypto},
	{Symbol: "ETH/USD", Name: "Ethereum", BasePrice: 3_285.30, Volatility: 0.72, Icon: "Ξ", Category: entity.CategoryCrypto},
	{Symbol: "SOL/USD", Name: "Solana", BasePrice: 198.45, Volatility: 0.85, Icon: "◎", Category: entity.CategoryCrypto},
	{Symbol: "BNB/USD", Name: "BNB", BasePrice: 652.80, Volatility: 0.60, Icon: "⬡", Category: entity.CategoryCrypto},
	{Symbol: "XRP/USD", Name: "Ripple", BasePrice: 2.48, Volatility: 0.78, Icon: "✕", Category: entity.CategoryCrypto},
	{Symbol: "ADA/USD", Name: "Cardano", BasePrice: 0.98, Volatility: 0.80, Icon: "₳", Category: entity.CategoryCrypto},
	{Symbol: "AVAX/USD", Name: "Avalanche", BasePrice: 38.75, Volatility: 0.82, Icon: "▲", Category: entity.CategoryCrypto},
	{Symbol: "DOT/USD", Name: "Polkadot", BasePrice: 7.35, Volatility: 0.75, Icon: "●", Category: entity.CategoryCrypto},
	{Symbol: "LINK/USD", Name: "Chainlink", BasePrice: 18.90, Volatility: 0.70, Icon: "⬡", Category: entity.CategoryCrypto},
	{Symbol: "MATIC/USD", Name: "Polygon", BasePrice: 0.52, Volatility: 0.85, Icon: "⬟", Category: entity.CategoryCrypto},
	{Symbol: "UNI/USD", Name: "Uniswap", BasePrice: 12.35, Volatility: 0.78, Icon: "🦄", Category: entity.CategoryCrypto},
	{Symbol: "ATOM/USD", Name: "Cosmos", BasePrice: 9.20, Volatility: 0.72, Icon: "⚛", Category: entity.CategoryCrypto},
	{Symbol: "FTM/USD", Name: "Fantom", BasePrice: 0.78, Volatility: 0.90, Icon: "👻", Category: entity.CategoryCrypto},
	{Symbol: "NEAR/USD", Name: "NEAR Protocol", BasePrice: 5.42, Volatility: 0.80, Icon: "Ⓝ", Category: entity.CategoryCrypto},
	{Symbol: "APT/USD", Name: "Aptos", BasePrice: 9.85, Volatility: 0.82, Icon: "◆", Category: entity.CategoryCrypto},
	{Symbol: "OP/USD", Name: "Optimism", BasePrice: 2.15, Volatility: 0.85, Icon: "⭕", Category: entity.CategoryCrypto},
	{Symbol: "ARB/USD", Name: "Arbitrum", BasePrice: 1.08, Volatility: 0.83, Icon: "🔵", Category: entity.CategoryCrypto},
	{Symbol: "SUI/USD", Name: "Sui", BasePrice: 3.52, Volatility: 0.88, Icon: "💧", Category: entity.CategoryCrypto},
	{Symbol: "DOGE/USD", Name: "Dogecoin", BasePrice: 0.32, Volatility: 0.90, Icon: "🐕", Category: entity.CategoryCrypto},
	{Symbol: "SHIB/USD", Name: "Shiba Inu", BasePrice: 0.000022, Volatility: 0.95, Icon: "🐾", Category: entity.CategoryCrypto},
	{Symbol: "AAVE/USD", Name: "Aave", BasePrice: 285.40, Volatility: 0.75, Icon: "👻", Category: entity.CategoryCrypto},
	{Symbol: "MKR/USD", Name: "Maker", BasePrice: 1_850.00, Volatility: 0.68, Icon: "Ⓜ", Category: entity.CategoryCrypto},
	{Symbol: "CRV/USD", Name: "Curve", BasePrice: 0.88, Volatility: 0.82, Icon: "🔄", Category: entity.CategoryCrypto},
	{Symbol: "LDO/USD", Name: "Lido DAO", BasePrice: 2.15, Volatility: 0.80, Icon: "🏝", Category: entity.CategoryCrypto},
	{Symbol: "INJ/USD", Name: "Injective", BasePrice: 24.50, Volatility: 0.85, Icon: "💉", Category: entity.CategoryCrypto},
	{Symbol: "TIA/USD", Name: "Celestia", BasePrice: 12.80, Volatility: 0.88, Icon: "🌌", Category: entity.CategoryCrypto},
	{Symbol: "JUP/USD", Name: "Jupiter", BasePrice: 1.25, Volatility: 0.90, Icon: "🪐", Category: entity.CategoryCrypto},
	{Symbol: "RENDER/USD", Name: "Render", BasePrice: 7.85, Volatility: 0.82, Icon: "🎨", Category: entity.CategoryCrypto},
	{Symbol: "FET/USD", Name: "Fetch.ai", BasePrice: 2.35, Volatility: 0.85, Icon: "🤖", Category: entity.CategoryCrypto},
	{Symbol: "PEPE/USD", Name: "Pepe", BasePrice: 0.0000125, Volatility: 0.98, Icon: "🐸", Category: entity.CategoryCrypto},
	// forex
	{Symbol: "EUR/USD", Name: "Euro", BasePrice: 1.0842, Volatility: 0.08, Icon: "€", Category: entity.CategoryForex},
	{Symbol: "GBP/USD", Name: "British Pound", BasePrice: 1.2635, Volatility: 0.09, Icon: "£", Category: entity.CategoryForex},
	{Symbol: "USD/JPY", Name: "Japanese Yen", BasePrice: 150.25, Volatility: 0.10, Icon: "¥", Category: entity.CategoryForex},
	{Symbol: "AUD/USD", Name: "Australian $", BasePrice: 0.6545, Volatility: 0.10, Icon: "A$", Category: entity.CategoryForex},
	{Symbol: "USD/CAD", Name: "Canadian $", BasePrice: 1.3580, Volatility: 0.08, Icon: "C$", Category: entity.CategoryForex},
	{Symbol: "USD/CHF", Name: "Swiss Franc", BasePrice: 0.8825, Volatility: 0.08, Icon: "Fr", Category: entity.CategoryForex},
	{Symbol: "NZD/USD", Name: "New Zealand $", BasePrice: 0.6125, Volatility: 0.10, Icon: "NZ", Category: entity.CategoryForex},
	{Symbol: "EUR/GBP", Name: "Euro/Pound", BasePrice: 0.8580, Volatility: 0.07, Icon: "€£", Category: entity.CategoryForex},
	{Symbol: "EUR/JPY", Name: "Euro/Yen", BasePrice: 162.85, Volatility: 0.10, Icon: "€¥", Category: entity.CategoryForex},
	{Symbol: "GBP/JPY", Name: "Pound/Yen", BasePrice: 189.90, Volatility: 0.12, Icon: "£¥", Category: entity.CategoryForex},
	// commodities
	{Symbol: "XAU/USD", Name: "Gold", BasePrice: 2_635.50, Volatility: 0.15, Icon: "🥇", Category: entity.CategoryCommodity},
	{Symbol: "XAG/USD", Name: "Silver", BasePrice: 30.85, Volatility: 0.22, Icon: "🥈", Category: entity.CategoryCommodity},
	{Symbol: "WTI/USD", Name: "Crude Oil WTI", BasePrice: 72.40, Volatility: 0.30, Icon: "🛢", Category: entity.CategoryCommodity},
	{Symbol: "BRENT/USD", Name: "Brent Crude", BasePrice: 76.20, Volatility: 0.28, Icon: "🛢", Category: entity.CategoryCommodity},
	{Symbol: "NG/USD", Name: "Natural Gas", BasePrice: 2.85, Volatility: 0.45, Icon: "🔥", Category: entity.CategoryCommodity},
	{Symbol: "XCU/USD", Name: "Copper", BasePrice: 4.15, Volatility: 0.22, Icon: "🔶", Category: entity.CategoryCommodity},
	{Symbol: "XPT/USD", Name: "Platinum", BasePrice: 985.50, Volatility: 0.20, Icon: "⚪", Category: entity.CategoryCommodity},
	{Symbol: "WHEAT/USD", Name: "Wheat", BasePrice: 5.82, Volatility: 0.25, Icon: "🌾", Category: entity.CategoryCommodity},
	{Symbol: "CORN/USD", Name: "Corn", BasePrice: 4.55, Volatility: 0.22, Icon: "🌽", Category: entity.CategoryCommodity},
	{Symbol: "COFFEE/USD", Name: "Coffee", BasePrice: 2.45, Volatility: 0.28, Icon: "☕", Category: entity.CategoryCommodity},
}

// DefaultSymbols returns a copy of the built-in catalogue
func DefaultSymbols() []entity.SymbolConfig {
	out := make([]entity.SymbolConfig, len(defaultSymbols))
	copy(out, defaultSymbols)
	return out
}
