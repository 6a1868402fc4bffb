package connector

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/robaho/go-twime/pkg/common"
	"github.com/robaho/go-twime/pkg/connector/twime"
)

// NewConnector creates the connector for the session named by the account_key property. Only TWIME sessions
// are supported, their key has the form {prefix}-TWIME-{venue}-{env}.
func NewConnector(callback common.ConnectorCallback, props common.Properties, logOutput io.Writer) (common.ExchangeConnector, error) {
	if logOutput == nil {
		logOutput = os.Stdout
	}

	accountKey := props.GetString("account_key", "")
	if _, err := twime.ParseAccountKey(accountKey); err != nil {
		return nil, errors.Wrap(common.InvalidConnector, err.Error())
	}
	return twime.NewConnector(callback, props, accountKey, logOutput)
}

// Exited returns the channel a connector signals on when a message handler asks the host to exit, or nil when
// the connector has no such signal. Receiving from a nil channel blocks, so it is safe to select on either way.
func Exited(c common.ExchangeConnector) <-chan error {
	if e, ok := c.(interface{ Exited() <-chan error }); ok {
		return e.Exited()
	}
	return nil
}
