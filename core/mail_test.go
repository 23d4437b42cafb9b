package core_test

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/trackit/core"
	appfs "github.com/trezcool/trackit/fs"
)

type recordingLogger struct {
	errors []string
}

func (l *recordingLogger) Debug(string, ...interface{}) {}
func (l *recordingLogger) Info(string, ...interface{})  {}
func (l *recordingLogger) Warn(string, ...interface{})  {}
func (l *recordingLogger) Error(msg string, _ ...interface{}) {
	l.errors = append(l.errors, msg)
}
func (l *recordingLogger) Fatal(msg string, _ ...interface{}) {
	l.errors = append(l.errors, msg)
}

func TestParseEmailTemplates(t *testing.T) {
	conf := core.NewTestConfig()
	logger := &recordingLogger{}
	core.ParseEmailTemplates(appfs.FS, "templates/email", conf, logger)
	require.Empty(t, logger.errors)

	tests := []struct {
		name     string
		template string
		data     map[string]interface{}
		want     []string
	}{
		{
			name:     "password reset",
			template: "password_reset",
			data:     map[string]interface{}{"Name": "Ada", "Link": "https://app.test/reset?uid=x&token=y"},
			want:     []string{"Hi Ada", "https://app.test/reset?uid=x&token=y", "TrackIt"},
		},
		{
			name:     "join code",
			template: "join_code",
			data:     map[string]interface{}{"GroupName": "Alpha", "JoinCode": "ABC123"},
			want:     []string{`"Alpha"`, "ABC123", conf.FrontendBaseURL},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &core.EmailMessage{
				To:           []mail.Address{{Address: "ada@test.io"}},
				TemplateName: tt.template,
				TemplateData: tt.data,
			}
			require.NoError(t, msg.Render())
			assert.True(t, msg.HasContent())
			assert.NotEmpty(t, msg.HTMLContent)
			for _, s := range tt.want {
				assert.Contains(t, msg.TextContent, s)
			}
		})
	}

	t.Run("unknown template", func(t *testing.T) {
		msg := &core.EmailMessage{TemplateName: "nope"}
		require.NoError(t, msg.Render())
		assert.False(t, msg.HasContent())
	})
}
