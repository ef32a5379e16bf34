package mocks

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// CreateTestData builds `count` product documents with ids starting at
// `first`, all carrying the given status.
func CreateTestData(first int, count int, status string) []bson.D {
	var data []bson.D
	for i := first; i < first+count; i++ {
		data = append(data, bson.D{
			{Key: "_id", Value: int32(i)},
			{Key: "id", Value: int32(i)},
			{Key: "name", Value: fmt.Sprintf("product-%d", i)},
			{Key: "status", Value: status},
			{Key: "price", Value: float64(i) * 1.5},
			{Key: "tags", Value: bson.A{"a", "b"}},
		})
	}
	return data
}
