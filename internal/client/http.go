package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// HTTPClient implements API over the JSON envelope. Session cookies live in
// the jar of the wrapped *http.Client.
type HTTPClient struct {
	base string
	http *http.Client
	log  logrus.FieldLogger
}

func NewHTTPClient(baseURL string, hc *http.Client, log logrus.FieldLogger) *HTTPClient {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPClient{base: strings.TrimSuffix(baseURL, "/"), http: hc, log: log}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *APIError       `json:"error"`
}

// do sends one request and decodes data into out when out is non-nil.
func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)
	if errors.Is(decodeErr, io.EOF) {
		decodeErr = nil
	}

	if resp.StatusCode >= 400 {
		// 代理返回的纯文本或 HTML 错误页也要保留状态码
		apiErr := env.Error
		if decodeErr != nil || apiErr == nil {
			apiErr = &APIError{Code: "INTERNAL_ERROR", Message: http.StatusText(resp.StatusCode)}
		}
		apiErr.Status = resp.StatusCode
		c.log.WithFields(logrus.Fields{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
			"code":   apiErr.Code,
		}).Debug("api error")
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, decodeErr)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode %s %s data: %w", method, path, err)
		}
	}
	return nil
}

func pageQuery(page, limit int) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	return q
}

type contentBody struct {
	Content string `json:"content"`
}

func (c *HTTPClient) ListComments(ctx context.Context, slug string, page, limit int, sort SortOrder) (*Page[Comment], error) {
	q := pageQuery(page, limit)
	q.Set("sortBy", string(sort))
	var out Page[Comment]
	if err := c.do(ctx, http.MethodGet, "/api/quotes/"+url.PathEscape(slug)+"/comments", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CreateComment(ctx context.Context, slug, content string) (*Comment, error) {
	var out Comment
	if err := c.do(ctx, http.MethodPost, "/api/quotes/"+url.PathEscape(slug)+"/comments", nil, contentBody{content}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateComment(ctx context.Context, id, content string) (*Comment, error) {
	var out Comment
	if err := c.do(ctx, http.MethodPatch, "/api/comments/"+url.PathEscape(id), nil, contentBody{content}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteComment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/comments/"+url.PathEscape(id), nil, nil, nil)
}

func (c *HTTPClient) repliesPath(slug, commentID string) string {
	return "/api/quotes/" + url.PathEscape(slug) + "/comments/" + url.PathEscape(commentID) + "/replies"
}

func (c *HTTPClient) ListReplies(ctx context.Context, slug, commentID string, page, limit int) (*Page[Reply], error) {
	var out Page[Reply]
	if err := c.do(ctx, http.MethodGet, c.repliesPath(slug, commentID), pageQuery(page, limit), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CreateReply(ctx context.Context, slug, commentID, content string) (*Reply, error) {
	var out Reply
	if err := c.do(ctx, http.MethodPost, c.repliesPath(slug, commentID), nil, contentBody{content}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateReply(ctx context.Context, id, content string) (*Reply, error) {
	var out Reply
	if err := c.do(ctx, http.MethodPatch, "/api/replies/"+url.PathEscape(id), nil, contentBody{content}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteReply(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/replies/"+url.PathEscape(id), nil, nil, nil)
}
