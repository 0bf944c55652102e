package emailsvc

import (
	"bytes"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unistock/stockroom/core"
	testutil "github.com/unistock/stockroom/tests"
)

func TestNew(t *testing.T) {
	conf := testutil.NewConfig()
	_, ok := New(conf, testutil.NopLogger{}).(*consoleService)
	assert.True(t, ok, "console service in DEBUG")

	conf.Debug, conf.TestMode = false, false
	_, ok = New(conf, testutil.NopLogger{}).(*consoleService)
	assert.True(t, ok, "console service without a sendgrid key")

	conf.Email.SendgridAPIKey = "SG.key"
	_, ok = New(conf, testutil.NopLogger{}).(*sendgridService)
	assert.True(t, ok, "sendgrid service")
}

func TestConsoleService_send(t *testing.T) {
	conf := testutil.NewConfig()
	var out bytes.Buffer
	svc := newConsoleService(conf, testutil.NopLogger{}, &out)

	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: "Jane", Address: "jane@test.cd"}},
		Cc:      []mail.Address{{Address: "store@test.cd"}},
		Subject: "Stock received",
		BodyStr: "10 x A4 paper",
	}
	require.NoError(t, msg.Attach(strings.NewReader("item,qty\npaper,10\n"), "stock.csv", "text/csv"))
	require.True(t, svc.sendMessage(msg))

	written := out.String()
	assert.Contains(t, written, "Subject: [Stockroom] Stock received\r\n")
	assert.Contains(t, written, `To: "Jane" <jane@test.cd>`)
	assert.Contains(t, written, "CC: <store@test.cd>")
	assert.Contains(t, written, "multipart/mixed")
	assert.Contains(t, written, "10 x A4 paper")
	assert.Contains(t, written, "filename=stock.csv")
}

func TestConsoleService_sendWithoutRecipients(t *testing.T) {
	var out bytes.Buffer
	svc := newConsoleService(testutil.NewConfig(), testutil.NopLogger{}, &out)

	assert.False(t, svc.sendMessage(&core.EmailMessage{Subject: "nobody", BodyStr: "hello"}))
	assert.Empty(t, out.String())
}

func TestConsoleServiceMock(t *testing.T) {
	svc := NewConsoleServiceMock(testutil.NewConfig(), testutil.NopLogger{})
	svc.SendMessages(
		&core.EmailMessage{To: []mail.Address{{Address: "a@test.cd"}}, Subject: "one", BodyStr: "1"},
		&core.EmailMessage{Subject: "no recipient", BodyStr: "2"},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "one", sent[0].Subject)

	svc.Reset()
	assert.Empty(t, svc.SentMessages())
}

func TestSendgridService_prepare(t *testing.T) {
	conf := testutil.NewConfig()
	conf.Email.SendgridAPIKey = "SG.key"
	svc := newSendgridService(conf, testutil.NopLogger{})

	msg := core.EmailMessage{
		To:          []mail.Address{{Name: "Jane", Address: "jane@test.cd"}},
		Bcc:         []mail.Address{{Address: "audit@test.cd"}},
		Subject:     "Stock received",
		TextContent: "text",
		HTMLContent: "<p>html</p>",
	}
	m := svc.prepare(msg)

	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "[Stockroom] Stock received", p.Subject)
	require.Len(t, p.To, 1)
	assert.Equal(t, "jane@test.cd", p.To[0].Address)
	require.Len(t, p.BCC, 1)
	assert.Equal(t, "audit@test.cd", p.BCC[0].Address)

	assert.Equal(t, conf.Email.DefaultFrom.Address, m.From.Address)
	require.Len(t, m.Content, 2)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	assert.Equal(t, "text/html", m.Content[1].Type)
}
