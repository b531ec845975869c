// Package micheline holds sample contract storage and call parameters in
// the indexer's Micheline text rendering.
package micheline

import _ "embed"

//go:embed auction_storage.tz
var AuctionStorage string

//go:embed bundle_storage.tz
var BundleStorage string

//go:embed gacha_play.tz
var GachaPlay string

//go:embed gacha_storage.tz
var GachaStorage string

//go:embed ledger_key.tz
var LedgerKey string

//go:embed make_auction_params.tz
var MakeAuctionParams string

//go:embed make_bundle_params.tz
var MakeBundleParams string

//go:embed make_gacha_basic.tz
var MakeGachaBasic string

//go:embed make_gacha_cancel_time.tz
var MakeGachaCancelTime string

//go:embed mint_params.tz
var MintParams string

//go:embed royalty.tz
var Royalty string

//go:embed swap_params.tz
var SwapParams string

//go:embed swap_storage.tz
var SwapStorage string

//go:embed token_metadata.tz
var TokenMetadata string

//go:embed transfer_params.tz
var TransferParams string
