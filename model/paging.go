package model

import (
	"net/url"
	"strconv"
)

// Paging describes the paging constraints of a list request.
type Paging struct {
	Page           int
	PerPage        int
	IncludeDeleted bool
}

// AllPagesNotDeleted returns paging that spans every record not marked deleted.
func AllPagesNotDeleted() Paging {
	return Paging{
		Page:           0,
		PerPage:        AllPerPage,
		IncludeDeleted: false,
	}
}

// AllPerPage signals the store to return all results in a single page.
const AllPerPage = -1

// AddToQuery adds the paging parameters to the given query values.
func (p Paging) AddToQuery(q url.Values) {
	q.Add("page", strconv.Itoa(p.Page))
	q.Add("per_page", strconv.Itoa(p.PerPage))
	if p.IncludeDeleted {
		q.Add("include_deleted", "true")
	}
}
