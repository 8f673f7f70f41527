package email

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AWSSESSender sends emails via the AWS Simple Email Service query API, signing
// requests with Signature Version 4.
type AWSSESSender struct {
	apiSender
	region          string
	accessKeyID     string
	secretAccessKey string
	endpoint        string
	now             func() time.Time
}

// NewAWSSESSender creates an SES sender from cfg.AWSSES.
func NewAWSSESSender(cfg Config) (*AWSSESSender, error) {
	c := cfg.AWSSES
	if c.Region == "" {
		return nil, fmt.Errorf("AWS region is required")
	}
	if c.AccessKeyID == "" || c.SecretAccessKey == "" {
		return nil, fmt.Errorf("AWS credentials are required")
	}
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://email.%s.amazonaws.com/", c.Region)
	}
	s := &AWSSESSender{
		apiSender:       newAPISender(cfg),
		region:          c.Region,
		accessKeyID:     c.AccessKeyID,
		secretAccessKey: c.SecretAccessKey,
		endpoint:        endpoint,
		now:             time.Now,
	}
	s.send = s.SendEmail
	return s, nil
}

// SendEmail sends an email via AWS SES
func (s *AWSSESSender) SendEmail(ctx context.Context, data EmailData) error {
	fromAddr, fromName := s.from(data)
	source := fromAddr
	if fromName != "" {
		source = fmt.Sprintf("%s <%s>", fromName, fromAddr)
	}

	params := url.Values{}
	params.Set("Action", "SendEmail")
	params.Set("Version", "2010-12-01")
	params.Set("Source", source)
	params.Set("Destination.ToAddresses.member.1", data.To)
	params.Set("Message.Subject.Data", data.Subject)
	params.Set("Message.Subject.Charset", "UTF-8")
	params.Set("Message.Body.Text.Data", data.TextBody)
	params.Set("Message.Body.Text.Charset", "UTF-8")
	if data.ReplyTo != "" {
		params.Set("ReplyToAddresses.member.1", data.ReplyTo)
	}
	return s.call(ctx, params)
}

// Health performs a GetSendQuota call to check credentials and connectivity
func (s *AWSSESSender) Health(ctx context.Context) error {
	params := url.Values{}
	params.Set("Action", "GetSendQuota")
	params.Set("Version", "2010-12-01")
	return s.call(ctx, params)
}

// ProviderType returns the provider type
func (s *AWSSESSender) ProviderType() ProviderType {
	return ProviderTypeAWSSES
}

func (s *AWSSESSender) call(ctx context.Context, params url.Values) error {
	body := params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create SES request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	s.sign(req, []byte(body))
	_, err = s.do(req, "SES")
	return err
}

// sign adds a Signature Version 4 Authorization header to req.
func (s *AWSSESSender) sign(req *http.Request, payload []byte) {
	now := s.now().UTC()
	amzDate := now.Format("20060102T150405Z")
	dateStamp := now.Format("20060102")
	req.Header.Set("X-Amz-Date", amzDate)

	canonicalURI := req.URL.EscapedPath()
	if canonicalURI == "" {
		canonicalURI = "/"
	}
	signedHeaders := "content-type;host;x-amz-date"
	canonicalHeaders := fmt.Sprintf("content-type:%s\nhost:%s\nx-amz-date:%s\n",
		req.Header.Get("Content-Type"), req.Host, amzDate)
	canonicalRequest := strings.Join([]string{
		req.Method,
		canonicalURI,
		"",
		canonicalHeaders,
		signedHeaders,
		sha256Hex(payload),
	}, "\n")

	const algorithm = "AWS4-HMAC-SHA256"
	credentialScope := fmt.Sprintf("%s/%s/ses/aws4_request", dateStamp, s.region)
	stringToSign := strings.Join([]string{algorithm, amzDate, credentialScope, sha256Hex([]byte(canonicalRequest))}, "\n")

	signingKey := sigV4Key(s.secretAccessKey, dateStamp, s.region, "ses")
	signature := hex.EncodeToString(hmacSHA256(signingKey, []byte(stringToSign)))

	req.Header.Set("Authorization", fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		algorithm, s.accessKeyID, credentialScope, signedHeaders, signature))
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func sigV4Key(secretKey, dateStamp, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretKey), []byte(dateStamp))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte(service))
	return hmacSHA256(kService, []byte("aws4_request"))
}
