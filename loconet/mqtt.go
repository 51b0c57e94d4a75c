package loconet

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig configures an MQTT LocoNet bridge connection.
type MQTTConfig struct {
	Broker      string
	Port        int
	ClientID    string
	TopicPrefix string
}

// MQTTGateway reads the slot table from retained per-slot topics published by
// a LocoNet-to-MQTT bridge and sends messages as hex on <prefix>/send.
type MQTTGateway struct {
	mu     sync.RWMutex
	cfg    MQTTConfig
	conn   mqtt.Client
	slots  map[int]SlotData
	synced bool
}

func NewMQTTGateway(cfg MQTTConfig) *MQTTGateway {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "loconet"
	}
	return &MQTTGateway{
		cfg:   cfg,
		slots: make(map[int]SlotData),
	}
}

func (g *MQTTGateway) Name() string { return "LocoNet MQTT bridge" }

func (g *MQTTGateway) slotTopic() string { return g.cfg.TopicPrefix + "/slot/+" }
func (g *MQTTGateway) sendTopic() string { return g.cfg.TopicPrefix + "/send" }

// Connect dials the broker and subscribes to the slot topics.
func (g *MQTTGateway) Connect() error {
	broker := fmt.Sprintf("tcp://%s:%d", g.cfg.Broker, g.cfg.Port)
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(g.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(c mqtt.Client) {
			token := c.Subscribe(g.slotTopic(), 1, func(_ mqtt.Client, msg mqtt.Message) {
				g.handleSlot(msg.Topic(), msg.Payload())
			})
			token.Wait()
			if err := token.Error(); err != nil {
				log.Printf("loconet: mqtt subscribe %s: %v", g.slotTopic(), err)
			}
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	g.mu.Lock()
	g.conn = client
	g.mu.Unlock()
	return nil
}

// handleSlot stores the latest retained record for a slot topic.
func (g *MQTTGateway) handleSlot(topic string, payload []byte) {
	idx := strings.LastIndex(topic, "/")
	n, err := strconv.Atoi(topic[idx+1:])
	if err != nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.synced = true
	if len(payload) == 0 {
		delete(g.slots, n)
		return
	}
	var sd SlotData
	if err := json.Unmarshal(payload, &sd); err != nil {
		log.Printf("loconet: mqtt slot %d: %v", n, err)
		return
	}
	if sd.Slot == nil {
		sd.Slot = &n
	}
	g.slots[n] = sd
}

// ReadSlots returns the cached slot table ordered by slot number.
func (g *MQTTGateway) ReadSlots() ([]SlotData, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.synced {
		return nil, nil
	}
	nums := make([]int, 0, len(g.slots))
	for n := range g.slots {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	out := make([]SlotData, 0, len(nums))
	for _, n := range nums {
		out = append(out, g.slots[n])
	}
	return out, nil
}

func (g *MQTTGateway) Send(msg Message) error {
	g.mu.RLock()
	conn := g.conn
	g.mu.RUnlock()
	if conn == nil || !conn.IsConnected() {
		return fmt.Errorf("mqtt not connected")
	}
	token := conn.Publish(g.sendTopic(), 1, false, []byte(msg.Hex()))
	token.Wait()
	return token.Error()
}

func (g *MQTTGateway) Ping() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.conn == nil || !g.conn.IsConnected() {
		return fmt.Errorf("mqtt not connected")
	}
	return nil
}

func (g *MQTTGateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn != nil {
		g.conn.Disconnect(250)
		g.conn = nil
	}
}
