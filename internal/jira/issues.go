package jira

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
)

type IssueInput struct {
	ProjectKey   string
	Summary      string
	Description  string
	IssueType    string
	ParentKey    string
	AssigneeID   string
	ReporterID   string
	CustomFields map[string]string
}

type Issue struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

// CreateIssue posts a new issue. Empty optional fields are left out of the payload.
func (c *Client) CreateIssue(ctx context.Context, input IssueInput) (Issue, error) {
	if strings.TrimSpace(input.ProjectKey) == "" {
		return Issue{}, fmt.Errorf("jira project key is required")
	}
	var created Issue
	if err := c.doJSON(ctx, http.MethodPost, "/rest/api/3/issue", map[string]any{"fields": issueFields(input)}, &created); err != nil {
		return Issue{}, err
	}
	if strings.TrimSpace(created.Key) == "" {
		return Issue{}, fmt.Errorf("jira create issue returned no key")
	}
	return created, nil
}

func issueFields(input IssueInput) map[string]any {
	fields := map[string]any{
		"project":     map[string]string{"key": strings.TrimSpace(input.ProjectKey)},
		"summary":     input.Summary,
		"description": document(input.Description),
		"issuetype":   map[string]string{"name": input.IssueType},
	}
	if key := strings.TrimSpace(input.ParentKey); key != "" {
		fields["parent"] = map[string]string{"key": key}
	}
	if id := strings.TrimSpace(input.AssigneeID); id != "" {
		fields["assignee"] = map[string]string{"id": id}
	}
	if id := strings.TrimSpace(input.ReporterID); id != "" {
		fields["reporter"] = map[string]string{"id": id}
	}
	for field, value := range input.CustomFields {
		if strings.TrimSpace(field) == "" {
			continue
		}
		fields[field] = value
	}
	return fields
}

// document wraps plain text in a single-paragraph Atlassian document.
func document(text string) map[string]any {
	return map[string]any{
		"type":    "doc",
		"version": 1,
		"content": []any{
			map[string]any{
				"type": "paragraph",
				"content": []any{
					map[string]any{"type": "text", "text": text},
				},
			},
		},
	}
}

// AttachFile streams content as a multipart upload to the issue's attachments.
func (c *Client) AttachFile(ctx context.Context, issueKey, filename string, content io.Reader) error {
	issueKey = strings.TrimSpace(issueKey)
	if issueKey == "" {
		return fmt.Errorf("jira issue key is required")
	}
	path := "/rest/api/3/issue/" + url.PathEscape(issueKey) + "/attachments"

	bodyReader, bodyWriter := io.Pipe()
	form := multipart.NewWriter(bodyWriter)
	go func() {
		part, err := form.CreateFormFile("file", filepath.Base(filename))
		if err != nil {
			bodyWriter.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, content); err != nil {
			bodyWriter.CloseWithError(err)
			return
		}
		bodyWriter.CloseWithError(form.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		bodyReader.Close()
		return err
	}
	req.SetBasicAuth(c.email, c.apiToken)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("X-Atlassian-Token", "no-check")
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		bodyReader.Close()
		return err
	}
	defer res.Body.Close()
	return decodeResponse(res, http.MethodPost, path, nil)
}
