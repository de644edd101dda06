package ingest

import (
	"context"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"cogsense/internal/config"
)

// StartMQTT subscribes to the sample topic. Producers that cannot hold
// a socket open to this process (kiosks, embedded boards) publish
// through the site broker instead.
func StartMQTT(ctx context.Context, cfg *config.Manager, out chan<- Envelope, logger *slog.Logger) {
	current := cfg.Get().Ingest.MQTT
	if !current.Enabled {
		if logger != nil {
			logger.Info("mqtt ingest disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("mqtt ingest enabled", "broker", current.Broker, "topic", current.Topic)
	}

	opts := mqtt.NewClientOptions().
		AddBroker(current.Broker).
		SetClientID(current.ClientID).
		SetUsername(current.Username).
		SetPassword(current.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		token := client.Subscribe(current.Topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			env, err := DecodeSample(msg.Payload())
			if err != nil {
				if logger != nil {
					logger.Warn("mqtt decode error", "err", err)
				}
				return
			}
			SendNonBlocking(ctx, out, env, logger)
		})
		if token.Wait() && token.Error() != nil && logger != nil {
			logger.Error("mqtt subscribe error", "err", token.Error())
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		if logger != nil {
			logger.Warn("mqtt connection lost", "err", err)
		}
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		if logger != nil {
			logger.Error("mqtt connect error", "err", token.Error())
		}
		return
	}
	go func() {
		<-ctx.Done()
		client.Disconnect(250)
	}()
}
