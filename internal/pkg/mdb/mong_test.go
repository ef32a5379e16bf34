package mdb

import (
	"errors"
	"fmt"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestIsDuplicateKeyError(t *testing.T) {
	tests := []struct {
		err      error
		expected bool
	}{
		{nil, false},
		{errors.New("boom"), false},
		{mongo.CommandError{Code: 11000, Message: "E11000 duplicate key"}, true},
		{fmt.Errorf("wrapped: %w", mongo.CommandError{Code: 11001}), true},
		{mongo.CommandError{Code: 2, Message: "bad value"}, false},
	}

	for _, test := range tests {
		result := IsDuplicateKeyError(test.err)
		if result != test.expected {
			t.Errorf("IsDuplicateKeyError(%v) = %v; want %v", test.err, result, test.expected)
		}
	}
}

func TestExtractId(t *testing.T) {
	oid := primitive.NewObjectID()

	tests := []struct {
		doc   bson.D
		found bool
	}{
		{bson.D{}, false},
		{bson.D{{Key: "name", Value: "a"}}, false},
		{bson.D{{Key: "name", Value: "a"}, {Key: "_id", Value: oid}}, true},
	}

	for _, test := range tests {
		id, found := ExtractId(test.doc)
		if found != test.found {
			t.Errorf("ExtractId(%v) found = %v; want %v", test.doc, found, test.found)
		}
		if found && id.Value != oid {
			t.Errorf("ExtractId(%v) = %v; want %v", test.doc, id.Value, oid)
		}
	}
}

func TestUpsertModels(t *testing.T) {
	items := []*bson.D{
		{{Key: "_id", Value: 1}, {Key: "name", Value: "a"}},
		{{Key: "_id", Value: 2}, {Key: "name", Value: "b"}},
	}

	models, err := upsertModels(items)
	if err != nil {
		t.Fatalf("upsertModels() = %v; want nil", err)
	}
	if len(models) != 2 {
		t.Fatalf("upsertModels() returned %d models; want 2", len(models))
	}

	replace, ok := models[1].(*mongo.ReplaceOneModel)
	if !ok {
		t.Fatalf("upsertModels() model is %T; want *mongo.ReplaceOneModel", models[1])
	}
	if replace.Upsert == nil || !*replace.Upsert {
		t.Errorf("upsertModels() upsert not set")
	}

	// A projection removing the _id cannot be upserted
	_, err = upsertModels([]*bson.D{{{Key: "name", Value: "a"}}})
	if err == nil {
		t.Errorf("upsertModels() without _id = nil; want an error")
	}
}
