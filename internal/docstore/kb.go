package docstore

// Doc is one titled knowledge-base entry.
type Doc struct {
	Title   string
	Content string
}

// KnowledgeBase holds the platform documentation baked into the binary. Order
// is fixed: these entries always occupy the first index positions.
var KnowledgeBase = []Doc{
	{
		Title: "Platform Overview",
		Content: `Mini-DeFi is a decentralized lending platform supporting 100+ asset classes.
Users can deposit assets to earn interest and use as collateral, borrow assets against their collateral,
manage positions across multiple assets with batch operations, and monitor their health factor to avoid liquidation.`,
	},
	{
		Title: "How to Deposit",
		Content: `To deposit assets in Mini-DeFi:
1. Connect your wallet by clicking 'Connect Wallet' in the top-right corner
2. Select assets you want to deposit from the Asset Browser (left sidebar)
3. Set proportions for each asset (must total 100%)
4. Enter the total USD amount you want to deposit
5. Click 'Execute Deposit' and confirm the transaction in MetaMask
Tip: Use the 'Equalize' button to split your deposit evenly across selected assets.`,
	},
	{
		Title: "How to Borrow",
		Content: `To borrow assets in Mini-DeFi:
1. First, you need deposited assets as collateral
2. Select the assets you want to borrow from the Asset Browser
3. Click the 'Borrow' tab in the Operation Panel
4. Set proportions and enter the amount you want to borrow
5. Click 'Execute Borrow' and confirm in MetaMask
Your borrowing power = Collateral Value × Collateral Factor. Keep your Health Factor above 1.0.`,
	},
	{
		Title: "Health Factor Explained",
		Content: `Health Factor is a measure of your loan safety in Mini-DeFi.
Formula: Health Factor = (Total Collateral × Collateral Factor) / Total Borrows
- Above 1.5: Safe zone (green) - your position is healthy
- 1.0 to 1.5: Caution zone (yellow) - monitor closely
- Below 1.0: Liquidation risk (red) - your position can be liquidated
To improve your Health Factor: add more collateral, repay some debt, or withdraw less.`,
	},
	{
		Title: "Liquidation",
		Content: `Liquidation occurs when your Health Factor drops below 1.0.
What happens during liquidation:
- Anyone can repay part of your debt on your behalf
- They receive your collateral at a discount (liquidation bonus, typically 5-10%)
- You lose collateral but your debt is reduced
To avoid liquidation: keep Health Factor above 1.5, monitor asset prices, repay debt if HF drops.`,
	},
	{
		Title: "Interest Rates",
		Content: `Interest rates in Mini-DeFi are dynamic and based on utilization (borrowed/deposited ratio).
- Low utilization = Lower interest rates
- High utilization = Higher interest rates
The platform uses a kink model: rates increase gradually until a target utilization, then spike sharply.
Depositors earn interest (supply APY), Borrowers pay interest (borrow APY).
Rates adjust automatically to balance supply and demand.`,
	},
	{
		Title: "Batch Operations",
		Content: `Mini-DeFi supports batch operations to save gas and time:
1. Select multiple assets in the Asset Browser (click to toggle selection)
2. Set proportion for each selected asset (must total 100%)
3. Use 'Equalize' button to split amounts evenly
4. Enter total amount and execute
This performs deposits/withdrawals/borrows/repays across all selected assets in fewer transactions.`,
	},
	{
		Title: "Wallet Connection",
		Content: `To connect your wallet to Mini-DeFi:
1. Click the 'Connect Wallet' button in the top-right corner
2. Select MetaMask (or your preferred wallet) from the options
3. Approve the connection request in your wallet
Supported networks: Ethereum Mainnet, Polygon, Hardhat Local (for testing).
Make sure you're on the correct network before performing transactions.`,
	},
	{
		Title: "Asset Categories",
		Content: `Mini-DeFi supports assets across multiple categories:
- USD Stablecoins: USDC, USDT, DAI, BUSD, etc. (high collateral factor)
- BTC Derivatives: WBTC, renBTC, sBTC, etc.
- ETH Derivatives: WETH, stETH, rETH, cbETH, etc.
- DeFi Tokens: AAVE, UNI, CRV, COMP, MKR, etc.
- Layer 2 Tokens: ARB, OP, MATIC, etc.
- Meme Coins: DOGE, SHIB, PEPE, etc. (lower collateral factor)
Use the category filter in the Asset Browser to find specific asset types.`,
	},
	{
		Title: "Collateral Factor",
		Content: `Collateral Factor determines how much you can borrow against an asset.
Range: 50% to 85% depending on asset volatility and liquidity.
Example: If you deposit $1000 USDC with 75% collateral factor, you can borrow up to $750.
Stablecoins typically have higher collateral factors (safer), while volatile assets have lower factors.
The collateral factor is shown for each asset in the Asset Browser.`,
	},
}
