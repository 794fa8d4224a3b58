package database

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

type priced struct {
	Price decimal.Decimal `bson:"price"`
}

func TestDecimalStoredAsDecimal128(t *testing.T) {
	reg := NewBSONRegistry()

	raw, err := bson.MarshalWithRegistry(reg, priced{Price: decimal.RequireFromString("1099.99")})
	require.NoError(t, err)

	assert.Equal(t, bsontype.Decimal128, bson.Raw(raw).Lookup("price").Type)

	var out priced
	require.NoError(t, bson.UnmarshalWithRegistry(reg, raw, &out))
	assert.True(t, decimal.RequireFromString("1099.99").Equal(out.Price), "got %s", out.Price)
}

func TestDecimalDecodesLegacyNumbers(t *testing.T) {
	reg := NewBSONRegistry()

	for name, doc := range map[string]bson.M{
		"double": {"price": 19.5},
		"int32":  {"price": int32(7)},
		"int64":  {"price": int64(1200)},
		"string": {"price": "3.25"},
	} {
		t.Run(name, func(t *testing.T) {
			raw, err := bson.Marshal(doc)
			require.NoError(t, err)

			var out priced
			require.NoError(t, bson.UnmarshalWithRegistry(reg, raw, &out))
			assert.False(t, out.Price.IsZero())
		})
	}
}
