package mongodb

import (
	"regexp"

	"github.com/vaidashi/storefront-api/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// effectivePrice mirrors Product.EffectivePrice as an aggregation expression
var effectivePrice = bson.M{
	"$cond": bson.A{
		bson.M{"$and": bson.A{
			bson.M{"$gt": bson.A{"$discountPrice", 0}},
			bson.M{"$lt": bson.A{"$discountPrice", "$price"}},
		}},
		"$discountPrice",
		"$price",
	},
}

func caseInsensitiveEquals(s string) primitive.Regex {
	return primitive.Regex{Pattern: "^" + regexp.QuoteMeta(s) + "$", Options: "i"}
}

func productFilter(f models.ProductFilter) bson.M {
	filter := bson.M{}

	if f.ActiveOnly {
		filter["isActive"] = true
	}
	if f.Category != "" {
		filter["category"] = caseInsensitiveEquals(f.Category)
	}
	if f.Brand != "" {
		filter["brand"] = caseInsensitiveEquals(f.Brand)
	}
	if f.Keyword != "" {
		kw := primitive.Regex{Pattern: regexp.QuoteMeta(f.Keyword), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"name": kw},
			bson.M{"description": kw},
		}
	}

	var bounds bson.A
	if f.MinPrice != nil {
		bounds = append(bounds, bson.M{"$gte": bson.A{effectivePrice, *f.MinPrice}})
	}
	if f.MaxPrice != nil {
		bounds = append(bounds, bson.M{"$lte": bson.A{effectivePrice, *f.MaxPrice}})
	}
	if len(bounds) > 0 {
		filter["$expr"] = bson.M{"$and": bounds}
	}

	return filter
}

// productPricePipeline pages products ordered by effective price, which a
// plain find cannot sort on.
func productPricePipeline(f models.ProductFilter, limit, offset int) mongo.Pipeline {
	direction := 1
	if f.Sort == models.SortPriceHigh {
		direction = -1
	}

	return mongo.Pipeline{
		{{Key: "$match", Value: productFilter(f)}},
		{{Key: "$addFields", Value: bson.M{"effectivePrice": effectivePrice}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "effectivePrice", Value: direction},
			{Key: "createdAt", Value: -1},
			{Key: "_id", Value: -1},
		}}},
		{{Key: "$skip", Value: int64(offset)}},
		{{Key: "$limit", Value: int64(limit)}},
		{{Key: "$project", Value: bson.M{"effectivePrice": 0}}},
	}
}

func orderFilter(f models.OrderFilter) bson.M {
	filter := bson.M{}

	if f.UserID != "" {
		filter["userId"] = f.UserID
	}

	status := bson.M{}
	if f.Status != "" {
		status["$eq"] = f.Status
	}
	if len(f.ExcludeStatuses) > 0 {
		status["$nin"] = f.ExcludeStatuses
	}
	if len(status) > 0 {
		filter["status"] = status
	}

	created := bson.M{}
	if f.From != nil {
		created["$gte"] = *f.From
	}
	if f.To != nil {
		created["$lte"] = *f.To
	}
	if len(created) > 0 {
		filter["createdAt"] = created
	}

	return filter
}
