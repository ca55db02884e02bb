package messagepush

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/lockburn/bridge-relayer/sequencer/types"
	"github.com/pkg/errors"
)

func convertMsgToString(msg interface{}) (string, error) {
	var msgString string
	switch v := msg.(type) {
	case string:
		// If message is a string, just send it
		msgString = v
	default:
		// If message is an object, encode to json
		b, err := json.Marshal(msg)
		if err != nil {
			log.Errorf("msg cannot be encoded to json: msg[%v] err[%v]", msg, err)
			return "", errors.Wrap(err, "kafka produce: JSON marshal error")
		}
		msgString = string(b)
	}
	return msgString, nil
}

func buildTaskMessage(view types.View) (*PushMessage, error) {
	b, err := json.Marshal(view)
	if err != nil {
		return nil, errors.Wrap(err, "json marshal error")
	}
	return &PushMessage{
		BizCode:       BizCodeSettlementTask,
		WalletAddress: view.Recipient,
		RequestID:     uuid.NewString(),
		PushContent:   fmt.Sprintf("[%v]", string(b)),
		Time:          time.Now().UnixMilli(),
	}, nil
}

// ApplySASL enables SASL_SSL on the sarama config when credentials and a root CA are configured
func ApplySASL(config *sarama.Config, username, password, rootCAPath string) error {
	if username == "" || password == "" || rootCAPath == "" {
		return nil
	}
	config.Net.SASL.Enable = true
	config.Net.SASL.User = username
	config.Net.SASL.Password = password

	// Read the CA cert from file
	rootCA, err := os.ReadFile(rootCAPath)
	if err != nil {
		return errors.Wrap(err, "read root CA cert fail")
	}

	caCertPool := x509.NewCertPool()
	if ok := caCertPool.AppendCertsFromPEM(rootCA); !ok {
		return errors.New("caCertPool.AppendCertsFromPEM")
	}

	config.Net.TLS.Enable = true
	config.Net.TLS.Config = &tls.Config{RootCAs: caCertPool, InsecureSkipVerify: true} // #nosec
	return nil
}
