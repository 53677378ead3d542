package labelprovider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/kodascan/whalewatch/internal/domain/model"
	"github.com/kodascan/whalewatch/internal/store/mocks"
)

type staticRemote struct {
	label RemoteLabel
}

func (s staticRemote) Lookup(context.Context, model.Chain, string) (RemoteLabel, error) {
	return s.label, nil
}

func TestProvider_ReadThroughLabelStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	labelStore := mocks.NewMockLabelRepository(ctrl)

	const addr = "0x9999999999999999999999999999999999999999"
	stored := model.AddressLabel{
		Address:    addr,
		Chain:      model.ChainEthereum,
		Kind:       model.EntityCEX,
		EntityName: "Kraken",
		Confidence: 0.95,
		UpdatedAt:  time.Now(),
	}

	// First lookup resolves remotely and persists to the store; the
	// second finds the in-process LRU entry expired and reads through.
	labelStore.EXPECT().
		Upsert(gomock.Any(), gomock.AssignableToTypeOf(model.AddressLabel{})).
		Return(nil)
	labelStore.EXPECT().
		Get(gomock.Any(), model.ChainEthereum, addr).
		Return(&stored, nil)

	p := New(Config{
		CacheCapacity:    128,
		TTL:              time.Nanosecond, // force immediate LRU expiry
		NegativeCacheTTL: time.Minute,
		RemoteRatePerSec: 100,
		BloomExpected:    1000,
		BloomFPR:         0.01,
	}, staticRemote{label: RemoteLabel{RawLabel: "Kraken 4"}}, labelStore, nil)

	first := p.Lookup(context.Background(), model.ChainEthereum, addr)
	assert.Equal(t, model.EntityCEX, first.Kind)

	second := p.Lookup(context.Background(), model.ChainEthereum, addr)
	assert.Equal(t, model.EntityCEX, second.Kind)
	assert.Equal(t, "Kraken", second.EntityName)
}
