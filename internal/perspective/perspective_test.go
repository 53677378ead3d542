package perspective

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kodascan/whalewatch/internal/domain/model"
)

func labeled(addr string, kind model.EntityKind, entity string) model.AddressLabel {
	return model.AddressLabel{Address: addr, Kind: kind, EntityName: entity, Confidence: 0.95}
}

func transfer(from, to model.AddressLabel) model.EnrichedTransfer {
	return model.EnrichedTransfer{
		RawTransfer: model.RawTransfer{
			Chain:    model.ChainEthereum,
			TxHash:   "0xabc",
			FromAddr: from.Address,
			ToAddr:   to.Address,
			Symbol:   "USDC",
		},
		FromLabel: from,
		ToLabel:   to,
	}
}

func TestProject_Table(t *testing.T) {
	binance := labeled("0xcex1", model.EntityCEX, "Binance")
	uniswap := labeled("0xdex1", model.EntityDEX, "Uniswap")
	eoa1 := labeled("0xe0a1", model.EntityEOA, "")
	eoa2 := labeled("0xe0a2", model.EntityUnknown, "")

	wintermute := labeled("0xmm01", model.EntityMarketMaker, "Wintermute")

	tests := []struct {
		name             string
		from, to         model.AddressLabel
		wantWhale        string
		wantCounterparty string
		wantKind         model.EntityKind
		wantCEX          bool
	}{
		{"cex to eoa (withdrawal)", binance, eoa1, "0xe0a1", "0xcex1", model.EntityCEX, true},
		{"eoa to cex (deposit)", eoa1, binance, "0xe0a1", "0xcex1", model.EntityCEX, true},
		{"dex to eoa", uniswap, eoa1, "0xe0a1", "0xdex1", model.EntityDEX, false},
		{"eoa to dex", eoa1, uniswap, "0xe0a1", "0xdex1", model.EntityDEX, false},
		{"unknown to cex", eoa2, binance, "0xe0a2", "0xcex1", model.EntityCEX, true},
		{"market maker to eoa", wintermute, eoa1, "0xe0a1", "0xmm01", model.EntityMarketMaker, false},
		{"eoa to market maker", eoa1, wintermute, "0xe0a1", "0xmm01", model.EntityMarketMaker, false},
		{"eoa to eoa defaults to sender", eoa1, eoa2, "0xe0a1", "0xe0a2", model.EntityUnknown, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, ok := Project(transfer(tc.from, tc.to))
			require.True(t, ok)
			assert.Equal(t, tc.wantWhale, p.WhaleAddress)
			assert.Equal(t, tc.wantCounterparty, p.CounterpartyAddress)
			assert.Equal(t, tc.wantKind, p.CounterpartyKind)
			assert.Equal(t, tc.wantCEX, p.IsCEXTransaction)
		})
	}
}

func TestProject_CEXToCEXSkips(t *testing.T) {
	binanceA := labeled("0xcex1", model.EntityCEX, "Binance")
	binanceB := labeled("0xcex2", model.EntityCEX, "Binance")
	coinbase := labeled("0xcex3", model.EntityCEX, "Coinbase")

	_, ok := Project(transfer(binanceA, binanceB))
	assert.False(t, ok, "same-entity CEX move must be skipped")

	// Cross-entity CEX moves are also never whale-attributable.
	_, ok = Project(transfer(binanceA, coinbase))
	assert.False(t, ok)
}

func TestProject_WhaleIsNeverCEX(t *testing.T) {
	binance := labeled("0xcex1", model.EntityCEX, "Binance")
	kinds := []model.EntityKind{
		model.EntityEOA, model.EntityUnknown, model.EntityWhale, model.EntityMEV,
	}
	for _, k := range kinds {
		other := labeled("0xother", k, "")
		if p, ok := Project(transfer(binance, other)); ok {
			assert.NotEqual(t, binance.Address, p.WhaleAddress, "kind=%s", k)
		}
		if p, ok := Project(transfer(other, binance)); ok {
			assert.NotEqual(t, binance.Address, p.WhaleAddress, "kind=%s", k)
		}
	}
}

func TestBuildRecord(t *testing.T) {
	eoa := labeled("0xe0a1", model.EntityEOA, "")
	binance := labeled("0xcex1", model.EntityCEX, "Binance")
	tr := transfer(eoa, binance)
	tr.BlockTime = time.Date(2026, 5, 1, 14, 0, 0, 0, time.UTC)
	tr.USDValue = 30_000
	tr.SourceID = "logstream-eth"

	c := model.NewClassification(model.KindSell, 0.95).WithEvidence("deposit to Coinbase")
	p, ok := Project(tr)
	require.True(t, ok)

	ingested := time.Date(2026, 5, 1, 14, 0, 5, 0, time.UTC)
	rec := BuildRecord(tr, c, p, ingested)

	assert.Equal(t, "0xabc", rec.TxHash)
	assert.Equal(t, model.ChainEthereum, rec.Chain)
	assert.Equal(t, "0xe0a1", rec.WhaleAddress)
	assert.Equal(t, model.KindSell, rec.Classification)
	assert.Equal(t, 0.95, rec.Confidence)
	assert.True(t, rec.IsCEXTransaction)
	assert.Equal(t, "Binance", rec.ToLabel)
	assert.Equal(t, []string{"deposit to Coinbase"}, rec.Evidence)
	assert.Equal(t, ingested, rec.IngestedAt)
}
