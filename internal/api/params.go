package api

import (
	"encoding/json"
	"io"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"github.com/AceFire6/flagsmith/model"
)

func outputJSON(c *Context, w io.Writer, o interface{}) {
	encoder := json.NewEncoder(w)
	err := encoder.Encode(o)
	if err != nil {
		c.Logger.WithError(err).Error("failed to encode result")
	}
}

func parseString(u *url.URL, name string, defaultValue string) string {
	valueStr := u.Query().Get(name)
	if valueStr == "" {
		return defaultValue
	}

	return valueStr
}

func parseInt(u *url.URL, name string, defaultValue int) (int, error) {
	valueStr := u.Query().Get(name)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to parse %s", name)
	}

	return value, nil
}

func parseBool(u *url.URL, name string, defaultValue bool) (bool, error) {
	valueStr := u.Query().Get(name)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, errors.Wrapf(err, "failed to parse %s", name)
	}

	return value, nil
}

func parsePaging(u *url.URL) (model.Paging, error) {
	page, err := parseInt(u, "page", 0)
	if err != nil {
		return model.Paging{}, err
	}

	perPage, err := parseInt(u, "per_page", 100)
	if err != nil {
		return model.Paging{}, err
	}

	includeDeleted, err := parseBool(u, "include_deleted", false)
	if err != nil {
		return model.Paging{}, err
	}

	return model.Paging{
		Page:           page,
		PerPage:        perPage,
		IncludeDeleted: includeDeleted,
	}, nil
}
