package extract_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/sebastienferry/mongolastic/internal/pkg/extract"
	"github.com/sebastienferry/mongolastic/internal/pkg/mocks"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestExtractor(t *testing.T) {
	suite.Run(t, new(ExtractorSuite))
}

type ExtractorSuite struct {
	suite.Suite

	ctx    context.Context
	source *mocks.MockCollection
	active bson.D
}

func (s *ExtractorSuite) SetupTest() {
	s.ctx = context.Background()
	s.active = bson.D{{Key: "status", Value: "active"}}

	// 250 active products interleaved with archived ones
	var items []bson.D
	active := mocks.CreateTestData(0, 250, "active")
	archived := mocks.CreateTestData(1000, 50, "archived")
	for i, doc := range active {
		items = append(items, doc)
		if i%5 == 0 {
			items = append(items, archived[i/5])
		}
	}
	s.source = mocks.NewMockCollection(items)
}

func (s *ExtractorSuite) extractor(projection bson.D) *extract.Extractor {
	return extract.NewExtractor(s.source, extract.Config{
		Database:   "shop",
		Collection: "products",
		Filter:     s.active,
		Projection: projection,
	})
}

func ids(page []*bson.D) []int32 {
	var result []int32
	for _, doc := range page {
		for _, e := range *doc {
			if e.Key == "_id" {
				result = append(result, e.Value.(int32))
			}
		}
	}
	return result
}

func keys(doc *bson.D) []string {
	var result []string
	for _, e := range *doc {
		result = append(result, e.Key)
	}
	return result
}

func (s *ExtractorSuite) TestCount() {
	e := s.extractor(nil)

	count, err := e.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(250), count)

	// Counting again without writes returns the same value
	again, err := e.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(count, again)

	// Counting never opens a cursor
	s.Equal(0, s.source.AggregateCalls)
	s.Equal(extract.Unopened, e.State())
}

func (s *ExtractorSuite) TestCountEmpty() {
	s.active = bson.D{{Key: "status", Value: "deleted"}}
	e := s.extractor(nil)

	count, err := e.Count(s.ctx)
	s.ErrorIs(err, extract.ErrEmptyResult)
	s.Zero(count)
	s.Equal(0, s.source.AggregateCalls)
}

func (s *ExtractorSuite) TestCountTransportError() {
	s.source.CountErr = mocks.ErrMockTransport
	e := s.extractor(nil)

	_, err := e.Count(s.ctx)
	s.ErrorIs(err, extract.ErrTransport)
	s.ErrorIs(err, mocks.ErrMockTransport)
	s.False(errors.Is(err, extract.ErrEmptyResult))
}

func (s *ExtractorSuite) TestScenario() {
	e := s.extractor(bson.D{{Key: "_id", Value: 0}, {Key: "id", Value: 1}, {Key: "name", Value: 1}})

	count, err := e.Count(s.ctx)
	s.Require().NoError(err)
	s.Require().Equal(int64(250), count)

	expected := []int{100, 100, 50, 0}
	var all []*bson.D
	for i, size := range expected {
		page, err := e.BuildPage(s.ctx, int64(i*100), 100)
		s.Require().NoError(err)
		s.Require().Len(page, size, "page %d", i)
		for _, doc := range page {
			s.Equal([]string{"id", "name"}, keys(doc))
		}
		all = append(all, page...)
	}

	s.Len(all, 250)
	s.Equal(1, s.source.AggregateCalls)
	s.Equal(extract.Exhausted, e.State())
	s.True(s.source.Cursors[0].Closed)
}

func (s *ExtractorSuite) TestContiguousPaging() {
	tests := []struct {
		limit int
		pages int
		tail  int
	}{
		{1, 250, 1},
		{7, 36, 5},
		{50, 5, 50},
		{100, 3, 50},
		{249, 2, 1},
		{250, 1, 250},
		{1000, 1, 250},
	}

	for _, test := range tests {
		s.SetupTest()
		e := s.extractor(nil)

		var all []*bson.D
		var sizes []int
		for skip := int64(0); skip < 250; {
			page, err := e.BuildPage(s.ctx, skip, test.limit)
			s.Require().NoError(err)
			s.Require().NotEmpty(page)
			sizes = append(sizes, len(page))
			all = append(all, page...)
			skip += int64(len(page))
		}

		s.Len(sizes, test.pages, "limit %d", test.limit)
		s.Equal(test.tail, sizes[len(sizes)-1], "limit %d", test.limit)

		// Pages concatenate to the filtered set in natural order
		got := ids(all)
		s.Require().Len(got, 250)
		for i, id := range got {
			s.Equal(int32(i), id)
		}
		s.Equal(1, s.source.AggregateCalls)
	}
}

func (s *ExtractorSuite) TestSkipHonoredOnlyOnOpen() {
	e := s.extractor(nil)

	first, err := e.BuildPage(s.ctx, 10, 20)
	s.Require().NoError(err)
	s.Equal(int32(10), ids(first)[0])
	s.Equal(int64(30), e.Position())

	// A skip that does not follow the cursor does not re-seek it
	second, err := e.BuildPage(s.ctx, 200, 20)
	s.Require().NoError(err)
	s.Equal(int32(30), ids(second)[0])
	s.Equal(int32(49), ids(second)[19])
	s.Equal(int64(50), e.Position())

	s.Equal(1, s.source.AggregateCalls)
	pipeline := s.source.Pipelines[0]
	s.Require().Len(pipeline, 2)
	s.Equal("$skip", pipeline[1][0].Key)
	s.Equal(int64(10), pipeline[1][0].Value)
}

func (s *ExtractorSuite) TestSkipRegression() {
	e := s.extractor(nil)

	_, err := e.BuildPage(s.ctx, 100, 10)
	s.Require().NoError(err)

	_, err = e.BuildPage(s.ctx, 0, 10)
	s.ErrorIs(err, extract.ErrSkipRegression)

	// The cursor is left where it was
	page, err := e.BuildPage(s.ctx, 110, 10)
	s.Require().NoError(err)
	s.Equal(int32(110), ids(page)[0])
}

func (s *ExtractorSuite) TestInvalidArguments() {
	e := s.extractor(nil)

	_, err := e.BuildPage(s.ctx, 0, 0)
	s.ErrorIs(err, extract.ErrInvalidLimit)

	_, err = e.BuildPage(s.ctx, -1, 10)
	s.ErrorIs(err, extract.ErrInvalidSkip)

	s.Equal(0, s.source.AggregateCalls)
	s.Equal(extract.Unopened, e.State())
}

func (s *ExtractorSuite) TestPipeline() {
	projection := bson.D{{Key: "name", Value: 1}}
	e := s.extractor(projection)

	_, err := e.BuildPage(s.ctx, 0, 25)
	s.Require().NoError(err)

	s.Require().Len(s.source.Pipelines, 1)
	pipeline := s.source.Pipelines[0]
	s.Require().Len(pipeline, 3)
	s.Equal(bson.E{Key: "$match", Value: s.active}, pipeline[0][0])
	s.Equal(bson.E{Key: "$skip", Value: int64(0)}, pipeline[1][0])
	s.Equal(bson.E{Key: "$project", Value: projection}, pipeline[2][0])

	opts := s.source.Options[0]
	s.Require().NotNil(opts.AllowDiskUse)
	s.True(*opts.AllowDiskUse)
	s.Require().NotNil(opts.BatchSize)
	s.Equal(int32(25), *opts.BatchSize)
}

func (s *ExtractorSuite) TestProjectionOnEveryPage() {
	e := s.extractor(bson.D{{Key: "name", Value: 1}, {Key: "price", Value: 1}})

	for skip := int64(0); skip < 250; skip += 60 {
		page, err := e.BuildPage(s.ctx, skip, 60)
		s.Require().NoError(err)
		for _, doc := range page {
			s.Equal([]string{"_id", "name", "price"}, keys(doc))
		}
	}
}

func (s *ExtractorSuite) TestCursorId() {
	e := s.extractor(nil)

	_, err := e.BuildPage(s.ctx, 0, 100)
	s.Require().NoError(err)
	s.NotZero(e.CursorId())
	s.Equal(extract.Open, e.State())

	// A result set fitting in the first batch has no server cursor left
	s.SetupTest()
	small := s.extractor(nil)
	_, err = small.BuildPage(s.ctx, 0, 500)
	s.Require().NoError(err)
	s.Zero(small.CursorId())
}

func (s *ExtractorSuite) TestExhausted() {
	e := s.extractor(nil)

	page, err := e.BuildPage(s.ctx, 240, 100)
	s.Require().NoError(err)
	s.Len(page, 10)
	s.Equal(extract.Exhausted, e.State())

	for i := 0; i < 3; i++ {
		page, err = e.BuildPage(s.ctx, 250, 100)
		s.Require().NoError(err)
		s.NotNil(page)
		s.Empty(page)
	}
	s.Equal(1, s.source.AggregateCalls)
}

func (s *ExtractorSuite) TestAggregateErrors() {
	tests := []struct {
		err      error
		expected error
	}{
		{mongo.CommandError{Code: 2, Message: "unknown top level operator: $foo"}, extract.ErrPipeline},
		{mongo.CommandError{Code: 6, Labels: []string{"NetworkError"}}, extract.ErrTransport},
		{mocks.ErrMockTransport, extract.ErrTransport},
	}

	for _, test := range tests {
		s.SetupTest()
		s.source.AggregateErr = test.err
		e := s.extractor(nil)

		_, err := e.BuildPage(s.ctx, 0, 10)
		s.ErrorIs(err, test.expected)
		s.Contains(err.Error(), test.err.Error())
		s.Equal(extract.Unopened, e.State())
	}
}

func (s *ExtractorSuite) TestCursorFailure() {
	s.source.FailAfter = 15
	e := s.extractor(nil)

	page, err := e.BuildPage(s.ctx, 0, 10)
	s.Require().NoError(err)
	s.Len(page, 10)

	page, err = e.BuildPage(s.ctx, 10, 10)
	s.ErrorIs(err, extract.ErrTransport)
	s.ErrorIs(err, mocks.ErrMockTransport)
	s.Nil(page)
}

func (s *ExtractorSuite) TestDecodeFailure() {
	s.source.DecodeFailAt = 15
	e := s.extractor(nil)

	_, err := e.BuildPage(s.ctx, 0, 10)
	s.Require().NoError(err)

	page, err := e.BuildPage(s.ctx, 10, 10)
	s.ErrorIs(err, extract.ErrTransport)
	s.ErrorIs(err, mocks.ErrMockDecode)
	s.Nil(page)

	// The documents read before the failure are lost, the cursor is not reused
	s.Equal(extract.Exhausted, e.State())
	s.True(s.source.Cursors[0].Closed)

	page, err = e.BuildPage(s.ctx, 20, 10)
	s.Require().NoError(err)
	s.Empty(page)
}

func (s *ExtractorSuite) TestLargeLimit() {
	e := s.extractor(nil)

	page, err := e.BuildPage(s.ctx, 0, math.MaxInt)
	s.Require().NoError(err)
	s.Len(page, 250)

	opts := s.source.Options[0]
	s.Require().NotNil(opts.BatchSize)
	s.Equal(int32(math.MaxInt32), *opts.BatchSize)
}

func (s *ExtractorSuite) TestClose() {
	e := s.extractor(nil)

	_, err := e.BuildPage(s.ctx, 0, 10)
	s.Require().NoError(err)
	s.Require().NoError(e.Close(s.ctx))
	s.True(s.source.Cursors[0].Closed)
	s.Equal(extract.Exhausted, e.State())

	page, err := e.BuildPage(s.ctx, 10, 10)
	s.Require().NoError(err)
	s.Empty(page)
}

func TestParseDocument(t *testing.T) {
	doc, err := extract.ParseDocument(`{"status": "active", "stock": {"$gt": 0}}`)
	require.NoError(t, err)
	require.Len(t, doc, 2)
	require.Equal(t, "status", doc[0].Key)
	require.Equal(t, "active", doc[0].Value)

	doc, err = extract.ParseDocument("  ")
	require.NoError(t, err)
	require.Nil(t, doc)

	_, err = extract.ParseDocument(`{"status": `)
	require.ErrorIs(t, err, extract.ErrPipeline)
}

func TestNewConfig(t *testing.T) {
	c, err := extract.NewConfig("shop", "products", "", `{"_id": 0, "name": 1}`)
	require.NoError(t, err)
	require.Equal(t, "shop.products", c.Namespace())
	require.Equal(t, bson.D{}, c.Query())

	pipeline := c.Pipeline(5)
	require.Len(t, pipeline, 3)

	_, err = extract.NewConfig("shop", "products", "{bad", "")
	require.ErrorIs(t, err, extract.ErrPipeline)

	_, err = extract.NewConfig("shop", "products", "", "[1, 2]")
	require.ErrorIs(t, err, extract.ErrPipeline)
}
