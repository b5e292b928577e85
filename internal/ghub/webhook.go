package ghub

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/tidwall/gjson"
)

const signaturePrefix = "sha256="

// VerifySignature checks the x-hub-signature-256 header against the raw
// request body using constant-time comparison.
func VerifySignature(secret, body []byte, header string) bool {
	if !strings.HasPrefix(header, signaturePrefix) {
		return false
	}
	provided, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(body)
	return hmac.Equal(provided, mac.Sum(nil))
}

// SignBody produces the x-hub-signature-256 header value for a body.
func SignBody(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

type IssueEvent struct {
	Action       string
	IssueNumber  int
	IssueTitle   string
	IssueState   string
	RepoID       int64
	RepoFullName string
}

type CommentEvent struct {
	Action       string
	IssueNumber  int
	RepoID       int64
	RepoFullName string
	CommentID    int64
	Author       string
	Body         string
}

func ParseIssueEvent(body []byte) IssueEvent {
	parsed := gjson.ParseBytes(body)
	return IssueEvent{
		Action:       parsed.Get("action").String(),
		IssueNumber:  int(parsed.Get("issue.number").Int()),
		IssueTitle:   parsed.Get("issue.title").String(),
		IssueState:   parsed.Get("issue.state").String(),
		RepoID:       parsed.Get("repository.id").Int(),
		RepoFullName: parsed.Get("repository.full_name").String(),
	}
}

func ParseCommentEvent(body []byte) CommentEvent {
	parsed := gjson.ParseBytes(body)
	return CommentEvent{
		Action:       parsed.Get("action").String(),
		IssueNumber:  int(parsed.Get("issue.number").Int()),
		RepoID:       parsed.Get("repository.id").Int(),
		RepoFullName: parsed.Get("repository.full_name").String(),
		CommentID:    parsed.Get("comment.id").Int(),
		Author:       parsed.Get("comment.user.login").String(),
		Body:         parsed.Get("comment.body").String(),
	}
}
