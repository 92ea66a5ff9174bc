package jira

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const pageSize = 50

type Board struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	ProjectKey string `json:"-"`
}

type Epic struct {
	ID      int64  `json:"id"`
	Key     string `json:"key"`
	Name    string `json:"name"`
	Summary string `json:"summary"`
	Done    bool   `json:"done"`
}

// Title prefers the epic summary, which is what people recognise.
func (e Epic) Title() string {
	if strings.TrimSpace(e.Summary) != "" {
		return e.Summary
	}
	if strings.TrimSpace(e.Name) != "" {
		return e.Name
	}
	return e.Key
}

type User struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
	Active      bool   `json:"active"`
	AccountType string `json:"accountType"`
}

type page[T any] struct {
	StartAt    int  `json:"startAt"`
	MaxResults int  `json:"maxResults"`
	IsLast     bool `json:"isLast"`
	Values     []T  `json:"values"`
}

func (c *Client) ListBoards(ctx context.Context) ([]Board, error) {
	var results []Board
	for startAt := 0; ; {
		var current page[Board]
		path := fmt.Sprintf("/rest/agile/1.0/board?startAt=%d&maxResults=%d", startAt, pageSize)
		if err := c.getJSON(ctx, path, &current); err != nil {
			return nil, err
		}
		results = append(results, current.Values...)
		if current.IsLast || len(current.Values) == 0 {
			return results, nil
		}
		startAt += len(current.Values)
	}
}

// BoardProject returns the project key the board is located in.
func (c *Client) BoardProject(ctx context.Context, boardID int64) (string, error) {
	var payload struct {
		Location struct {
			ProjectKey string `json:"projectKey"`
		} `json:"location"`
	}
	if err := c.getJSON(ctx, "/rest/agile/1.0/board/"+strconv.FormatInt(boardID, 10), &payload); err != nil {
		return "", err
	}
	return strings.TrimSpace(payload.Location.ProjectKey), nil
}

func (c *Client) ListEpics(ctx context.Context, boardID int64) ([]Epic, error) {
	var results []Epic
	for startAt := 0; ; {
		var current page[Epic]
		path := fmt.Sprintf("/rest/agile/1.0/board/%d/epic?startAt=%d&maxResults=%d", boardID, startAt, pageSize)
		if err := c.getJSON(ctx, path, &current); err != nil {
			return nil, err
		}
		results = append(results, current.Values...)
		if current.IsLast || len(current.Values) == 0 {
			return results, nil
		}
		startAt += len(current.Values)
	}
}

// ListAssignableUsers pages through users assignable to issues in a project.
func (c *Client) ListAssignableUsers(ctx context.Context, projectKey string) ([]User, error) {
	projectKey = strings.TrimSpace(projectKey)
	if projectKey == "" {
		return nil, fmt.Errorf("jira project key is required")
	}
	var results []User
	for startAt := 0; ; {
		var current []User
		query := url.Values{}
		query.Set("project", projectKey)
		query.Set("startAt", strconv.Itoa(startAt))
		query.Set("maxResults", strconv.Itoa(pageSize))
		if err := c.getJSON(ctx, "/rest/api/3/user/assignable/search?"+query.Encode(), &current); err != nil {
			return nil, err
		}
		results = append(results, current...)
		if len(current) < pageSize {
			return results, nil
		}
		startAt += len(current)
	}
}
