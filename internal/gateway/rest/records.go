package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"domino-community/internal/gateway"
	"domino-community/internal/shared/errors"
)

func (c *Client) Select(ctx context.Context, collection gateway.Collection, query gateway.Query) ([]gateway.Record, error) {
	logger := c.logger.With("operation", "select", "collection", collection)

	if err := query.Validate(collection); err != nil {
		return nil, errors.WrapExternal("invalid query", err)
	}

	params, err := EncodeQuery(query)
	if err != nil {
		return nil, errors.WrapExternal("invalid query", err)
	}

	req, err := c.newRequest(ctx, http.MethodGet, c.endpoint("/rest/v1/"+collection.String(), params), nil)
	if err != nil {
		return nil, err
	}

	var records []gateway.Record
	if err := c.doTable(ctx, req, &records); err != nil {
		logger.Debug("Select failed", "error", err)
		return nil, err
	}

	logger.Debug("Select completed", "count", len(records))
	return records, nil
}

func (c *Client) Insert(ctx context.Context, collection gateway.Collection, records ...gateway.Record) ([]gateway.Record, error) {
	logger := c.logger.With("operation", "insert", "collection", collection, "rows", len(records))

	if !collection.IsValid() {
		return nil, errors.External(fmt.Sprintf("unknown collection %q", collection))
	}
	if len(records) == 0 {
		return nil, nil
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint("/rest/v1/"+collection.String(), nil), records)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "return=representation")

	var created []gateway.Record
	if err := c.doTable(ctx, req, &created); err != nil {
		logger.Debug("Insert failed", "error", err)
		return nil, err
	}

	logger.Debug("Insert completed")
	return created, nil
}

func (c *Client) Count(ctx context.Context, collection gateway.Collection, filters ...gateway.Filter) (int, error) {
	logger := c.logger.With("operation", "count", "collection", collection)

	if !collection.IsValid() {
		return 0, errors.External(fmt.Sprintf("unknown collection %q", collection))
	}
	if err := gateway.ValidateFilters(collection, filters); err != nil {
		return 0, errors.WrapExternal("invalid filter", err)
	}

	params, err := EncodeQuery(gateway.Query{Filters: filters})
	if err != nil {
		return 0, errors.WrapExternal("invalid filter", err)
	}
	params.Set("select", "id")

	req, err := c.newRequest(ctx, http.MethodHead, c.endpoint("/rest/v1/"+collection.String(), params), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Prefer", "count=exact")

	resp, err := c.send(ctx, req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return 0, tableError(resp.StatusCode, readAPIError(resp))
	}

	n, err := ParseContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return 0, errors.WrapExternal("malformed count response", err)
	}

	logger.Debug("Count completed", "count", n)
	return n, nil
}

func (c *Client) send(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.httpClient(ctx).Do(req)
	if err != nil {
		if errors.IsAuth(err) {
			return nil, err
		}
		return nil, errors.WrapExternal("backend unreachable", err)
	}
	return resp, nil
}

func (c *Client) doTable(ctx context.Context, req *http.Request, out *[]gateway.Record) error {
	resp, err := c.send(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return tableError(resp.StatusCode, readAPIError(resp))
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return errors.WrapExternal("malformed response", err)
	}
	return nil
}

func tableError(status int, body apiError) error {
	code := fmt.Sprint(body.Code)
	switch {
	case status == http.StatusConflict || code == "23505":
		return errors.Conflictf("%s", body.text())
	case status == http.StatusNotFound:
		return errors.NotFoundf("%s", body.text())
	case status == http.StatusUnauthorized || code == "PGRST301":
		return errors.Unauthorized(body.text())
	}
	return errors.External(fmt.Sprintf("backend returned %d: %s", status, body.text()))
}

// EncodeQuery renders q in PostgREST's query-string dialect.
func EncodeQuery(q gateway.Query) (url.Values, error) {
	params := url.Values{}

	if len(q.Columns) > 0 {
		params.Set("select", strings.Join(q.Columns, ","))
	} else {
		params.Set("select", "*")
	}

	for _, f := range q.Filters {
		value, err := encodeFilter(f)
		if err != nil {
			return nil, err
		}
		params.Add(f.Column, value)
	}

	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			dir := "asc"
			if o.Descending {
				dir = "desc"
			}
			parts[i] = o.Column + "." + dir
		}
		params.Set("order", strings.Join(parts, ","))
	}

	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	return params, nil
}

func encodeFilter(f gateway.Filter) (string, error) {
	switch f.Op {
	case gateway.OpEq, gateway.OpNeq:
		return string(f.Op) + "." + formatValue(f.Value), nil
	case gateway.OpILike:
		return "ilike." + strings.ReplaceAll(formatValue(f.Value), "%", "*"), nil
	case gateway.OpIn:
		list, ok := f.Value.([]any)
		if !ok {
			return "", fmt.Errorf("in filter on %s expects a list", f.Column)
		}
		items := make([]string, len(list))
		for i, v := range list {
			items[i] = quoteListItem(formatValue(v))
		}
		return "in.(" + strings.Join(items, ",") + ")", nil
	}
	return "", fmt.Errorf("unsupported operator %q", f.Op)
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case string:
		return t
	}
	return fmt.Sprint(v)
}

func quoteListItem(s string) string {
	if strings.ContainsAny(s, ",()\" ") {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}

// ParseContentRange extracts the total from "0-9/42" or "*/42".
func ParseContentRange(header string) (int, error) {
	i := strings.LastIndex(header, "/")
	if i < 0 {
		return 0, fmt.Errorf("content range %q has no total", header)
	}
	total := header[i+1:]
	if total == "*" {
		return 0, fmt.Errorf("content range %q has an unknown total", header)
	}
	return strconv.Atoi(total)
}
