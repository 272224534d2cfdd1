// Package paginate walks paginated collection endpoints and yields their
// items one by one.
//
//	for item, err := range paginate.Offset(ctx, client.Path("posts"), paginate.OffsetOptions{Limit: 10}) {
//		if err != nil {
//			return err
//		}
//		fmt.Println(item.Get("title").String())
//	}
package paginate

import (
	"context"
	"errors"
	"iter"
	"net/url"
	"strconv"

	"github.com/abdul-hamid-achik/hammx/packages/hammx"
	"github.com/tidwall/gjson"
)

// ItemKeys are the object keys searched, in order, for the page items.
var ItemKeys = []string{"items", "results", "data", "records"}

// ErrTooManyPages is yielded when MaxPages is reached while the endpoint
// still reports more data.
var ErrTooManyPages = errors.New("paginate: page limit reached")

const DefaultLimit = 100

type PageOptions struct {
	Params url.Values
	// Param names the page number parameter. Defaults to "page".
	Param string
	// Start is the first page number. Defaults to 1.
	Start    int
	MaxPages int
}

type OffsetOptions struct {
	Params url.Values
	// Limit is the page size sent as "limit". Defaults to 100.
	Limit    int
	MaxPages int
}

type CursorOptions struct {
	Params url.Values
	// Param is the request parameter carrying the cursor. Defaults to "cursor".
	Param string
	// Field is the response field holding the next cursor, as a gjson
	// path. Defaults to "next_cursor".
	Field    string
	MaxPages int
}

// Pages requests page=1, page=2, ... until a page has no items. An object
// body without any of ItemKeys is yielded whole, as a single item.
func Pages(ctx context.Context, res *hammx.Resource, opts PageOptions) iter.Seq2[gjson.Result, error] {
	if opts.Param == "" {
		opts.Param = "page"
	}
	if opts.Start == 0 {
		opts.Start = 1
	}

	return func(yield func(gjson.Result, error) bool) {
		for page, fetched := opts.Start, 0; ; page, fetched = page+1, fetched+1 {
			if opts.MaxPages > 0 && fetched >= opts.MaxPages {
				yield(gjson.Result{}, ErrTooManyPages)
				return
			}

			body, err := fetch(ctx, res, opts.Params, opts.Param, strconv.Itoa(page))
			if err != nil {
				yield(gjson.Result{}, err)
				return
			}

			items, found := extractItems(body)
			if !found {
				if !body.IsObject() || len(body.Map()) == 0 {
					return
				}
				items = []gjson.Result{body}
			}
			if len(items) == 0 {
				return
			}

			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}
		}
	}
}

// Offset requests offset=0&limit=N, offset=N&limit=N, ... and stops on an
// empty page or a page shorter than the limit.
func Offset(ctx context.Context, res *hammx.Resource, opts OffsetOptions) iter.Seq2[gjson.Result, error] {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}

	return func(yield func(gjson.Result, error) bool) {
		for offset, fetched := 0, 0; ; offset, fetched = offset+opts.Limit, fetched+1 {
			if opts.MaxPages > 0 && fetched >= opts.MaxPages {
				yield(gjson.Result{}, ErrTooManyPages)
				return
			}

			params := cloneValues(opts.Params)
			params.Set("limit", strconv.Itoa(opts.Limit))
			body, err := fetch(ctx, res, params, "offset", strconv.Itoa(offset))
			if err != nil {
				yield(gjson.Result{}, err)
				return
			}

			items, _ := extractItems(body)
			if len(items) == 0 {
				return
			}
			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}
			if len(items) < opts.Limit {
				return
			}
		}
	}
}

// Cursor follows the cursor returned in each page until it is empty or a
// page has no items. When an object carries none of ItemKeys but exactly
// one array field besides the cursor, that array is used.
func Cursor(ctx context.Context, res *hammx.Resource, opts CursorOptions) iter.Seq2[gjson.Result, error] {
	if opts.Param == "" {
		opts.Param = "cursor"
	}
	if opts.Field == "" {
		opts.Field = "next_cursor"
	}

	return func(yield func(gjson.Result, error) bool) {
		cursor := ""
		for fetched := 0; ; fetched++ {
			if opts.MaxPages > 0 && fetched >= opts.MaxPages {
				yield(gjson.Result{}, ErrTooManyPages)
				return
			}

			body, err := fetch(ctx, res, opts.Params, opts.Param, cursor)
			if err != nil {
				yield(gjson.Result{}, err)
				return
			}

			var next string
			items, found := extractItems(body)
			if body.IsObject() {
				next = body.Get(opts.Field).String()
				if !found {
					items = soleArray(body, opts.Field)
				}
			}

			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}
			if next == "" || len(items) == 0 {
				return
			}
			cursor = next
		}
	}
}

// fetch sends one GET with key=value merged into params. An empty value
// leaves key out.
func fetch(ctx context.Context, res *hammx.Resource, params url.Values, key, value string) (gjson.Result, error) {
	q := cloneValues(params)
	if value != "" {
		q.Set(key, value)
	}

	resp, err := res.Get(ctx, hammx.WithParams(q))
	if err != nil {
		return gjson.Result{}, err
	}
	if !resp.IsSuccess() {
		return gjson.Result{}, &hammx.StatusError{
			Method:     resp.Method,
			URL:        resp.URL,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       resp.Body,
		}
	}
	return gjson.ParseBytes(resp.Body), nil
}

// extractItems returns the array body itself, or the first of ItemKeys
// present in an object body. found reports whether either applied.
func extractItems(body gjson.Result) (items []gjson.Result, found bool) {
	if body.IsArray() {
		return body.Array(), true
	}
	if !body.IsObject() {
		return nil, false
	}
	for _, key := range ItemKeys {
		if v := body.Get(key); v.Exists() {
			if v.IsArray() {
				return v.Array(), true
			}
			return nil, true
		}
	}
	return nil, false
}

func soleArray(body gjson.Result, skip string) []gjson.Result {
	var arrays []gjson.Result
	body.ForEach(func(key, value gjson.Result) bool {
		if key.String() != skip && value.IsArray() {
			arrays = append(arrays, value)
		}
		return true
	})
	if len(arrays) != 1 {
		return nil
	}
	return arrays[0].Array()
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
