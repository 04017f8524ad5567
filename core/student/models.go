package student

import (
	"strings"
	"time"

	"github.com/trezcool/seta/core"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// OrderFields are the fields students may be ordered by.
var OrderFields = []string{"name", "id_number", "status", "host_company", "programme", "created_at"}

// Student is a learner record as served by the remote API.
type Student struct {
	ID          string    `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	IDNumber    string    `json:"id_number"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Status      string    `json:"status"`
	HostCompany string    `json:"host_company"`
	Programme   string    `json:"programme"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s Student) Name() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

type Filter struct {
	Search      string `query:"search"`
	Status      string `query:"status"`
	HostCompany string `query:"host_company"`
	Programme   string `query:"programme"`
}

func (f *Filter) Clean() {
	f.Search = core.CleanString(f.Search, true /* lower */)
	f.Status = core.CleanString(f.Status, true)
	f.HostCompany = core.CleanString(f.HostCompany, true)
	f.Programme = core.CleanString(f.Programme, true)
}

// Pagination is a 1-based page request.
type Pagination struct {
	Page     int `query:"page"`
	PageSize int `query:"page_size"`
}

func (p *Pagination) Clean() {
	if p.Page <= 0 {
		p.Page = 1
	}
	switch {
	case p.PageSize > MaxPageSize:
		p.PageSize = MaxPageSize
	case p.PageSize <= 0:
		p.PageSize = DefaultPageSize
	}
}

type Page struct {
	Data        []Student `json:"data"`
	TotalRows   int       `json:"totalRows"`
	TotalPages  int       `json:"totalPages"`
	CurrentPage int       `json:"currentPage"`
	PageSize    int       `json:"pageSize"`
}
