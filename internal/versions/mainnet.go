package versions

import "github.com/AIAleph/mvp_market_context/internal/michelson"

// Contract addresses and big map ids of the marketplace on mainnet.
const (
	NFTContract       = "KT1AFq5XorPduoYyWxs5gEyrFK6fVjJVbtCj"
	MinterContract    = "KT1ULea6kxqiYe1A7CZVfMuGmTx7NmDGAph1"
	DaoContract       = "KT1AM3PV1cwmGRw28DVTgsjjsjHvmL6z4rGh"
	MetaverseContract = "KT1HGL8vx7DP4xETVikL4LUYvFxSV19DxdFN"
	AuctionContract   = "KT1CPzhw1UxAfdVYmeoMysVJLyA3fbvcqbi8"
	BundleContract    = "KT1NL8H5GTAWrVNbQUxxDzagRAURsdeV3Asz"
)

// Deployment groups the static contract table consumed by the read model.
type Deployment struct {
	NFT         string
	Minter      string
	Dao         string
	Metaverse   string
	Auction     string
	Bundle      string
	LedgerMap   int64
	MetadataMap int64
	RoyaltyMap  int64
	DaoLedger   int64
	SwapMap     int64
	AuctionMap  int64
	BundleMap   int64
	Gacha       *Router
}

// GachaMainnet is the gacha deployment table. The second deployment added a
// cancel date to make_gacha.
var GachaMainnet = MustNew(
	Descriptor{
		Name:         "v0",
		Contract:     "KT1P1WJuRb9K62gdx1HfkNJwohLA5EmyCoQK",
		GachaMap:     6824,
		PlayMap:      6822,
		WhitelistMap: 6823,
		ParamsLayout: michelson.GachaLayoutBasic,
	},
	Descriptor{
		Name:         "v1",
		ValidFrom:    Thresholds{ID: 8, BlockLevel: 1697163, Timestamp: 1631763322, PlayID: 179},
		Contract:     "KT1GsdckBVCsgqp6ERYLnyawyXACAAQspPv6",
		GachaMap:     15891,
		PlayMap:      15889,
		WhitelistMap: 15890,
		ParamsLayout: michelson.GachaLayoutCancelTime,
	},
)

// Mainnet returns the mainnet deployment table.
func Mainnet() Deployment {
	return Deployment{
		NFT:         NFTContract,
		Minter:      MinterContract,
		Dao:         DaoContract,
		Metaverse:   MetaverseContract,
		Auction:     AuctionContract,
		Bundle:      BundleContract,
		LedgerMap:   6809,
		MetadataMap: 6812,
		RoyaltyMap:  6816,
		DaoLedger:   6701,
		SwapMap:     6821,
		AuctionMap:  6829,
		BundleMap:   6826,
		Gacha:       GachaMainnet,
	}
}
