package databases

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MaxPageSize caps the number of documents a paginated list returns
const MaxPageSize = 200

// MaxPage is the highest page a paginated list accepts
const MaxPage = 10000

type mongoPaginate struct {
	limit int64
	page  int64
}

func newMongoPaginate(limit, page int) *mongoPaginate {
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	if page <= 0 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	return &mongoPaginate{
		limit: int64(limit),
		page:  int64(page),
	}
}

func (mp *mongoPaginate) getPaginatedOpts() *options.FindOptions {
	l := mp.limit
	skip := mp.page*mp.limit - mp.limit
	fOpt := options.FindOptions{Limit: &l, Skip: &skip}

	return &fOpt
}

// PaginatedOpts returns find options for the given page, pages start at 1
func PaginatedOpts(limit, page int) *options.FindOptions {
	return newMongoPaginate(limit, page).getPaginatedOpts().SetSort(bson.D{{Key: "createdAt", Value: 1}})
}
