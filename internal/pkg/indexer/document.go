package indexer

import (
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SplitId removes the _id from the document and returns its string form,
// used as the search document id. Search engines reject _id in the body.
func SplitId(doc bson.D) (string, bson.D, bool) {
	body := make(bson.D, 0, len(doc))
	id := ""
	found := false
	for _, e := range doc {
		if e.Key == "_id" && !found {
			id = IdString(e.Value)
			found = true
			continue
		}
		body = append(body, e)
	}
	return id, body, found
}

func IdString(v interface{}) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	case int32:
		return strconv.FormatInt(int64(id), 10)
	case int64:
		return strconv.FormatInt(id, 10)
	case int:
		return strconv.Itoa(id)
	case primitive.Binary:
		return fmt.Sprintf("%x", id.Data)
	}
	if data, err := bson.MarshalExtJSON(bson.D{{Key: "v", Value: v}}, false, false); err == nil {
		return string(data)
	}
	return fmt.Sprint(v)
}

// ToJSON encodes the document as relaxed extended JSON after replacing the
// types a search mapping cannot hold as objects: dates become RFC 3339
// strings, ObjectIDs and decimals their string form.
func ToJSON(doc bson.D) ([]byte, error) {
	return bson.MarshalExtJSON(searchable(doc), false, false)
}

func searchable(v interface{}) interface{} {
	switch value := v.(type) {
	case bson.D:
		doc := make(bson.D, 0, len(value))
		for _, e := range value {
			doc = append(doc, bson.E{Key: e.Key, Value: searchable(e.Value)})
		}
		return doc
	case bson.M:
		doc := make(bson.M, len(value))
		for k, e := range value {
			doc[k] = searchable(e)
		}
		return doc
	case bson.A:
		arr := make(bson.A, 0, len(value))
		for _, e := range value {
			arr = append(arr, searchable(e))
		}
		return arr
	case primitive.DateTime:
		return value.Time().UTC().Format(time.RFC3339Nano)
	case time.Time:
		return value.UTC().Format(time.RFC3339Nano)
	case primitive.Timestamp:
		return time.Unix(int64(value.T), 0).UTC().Format(time.RFC3339Nano)
	case primitive.ObjectID:
		return value.Hex()
	case primitive.Decimal128:
		return value.String()
	}
	return v
}
