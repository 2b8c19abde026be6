package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/pkg/logger"
)

type fakeChannel struct {
	declared   []string
	declareErr error
	published  []amqp.Publishing
	keys       []string
	closed     bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	f.declared = append(f.declared, name+"/"+kind)
	return f.declareErr
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQP(t *testing.T) {
	convey.Convey("Given a publisher over a fake channel", t, func() {
		ch := &fakeChannel{}
		p, err := newAMQP(ch, "courtside.events")
		convey.So(err, convey.ShouldBeNil)
		convey.So(ch.declared, convey.ShouldResemble, []string{"courtside.events/topic"})

		convey.Convey("Notify publishes a JSON body routed by kind", func() {
			n := model.Notification{
				ID: "s1:session.full:3", Kind: model.NotifySessionFull, SessionID: "s1",
				Recipients: []string{"u1", "u2"}, At: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
			}
			convey.So(p.Notify(context.Background(), n), convey.ShouldBeNil)
			convey.So(ch.keys, convey.ShouldResemble, []string{"session.full"})

			msg := ch.published[0]
			convey.So(msg.ContentType, convey.ShouldEqual, "application/json")
			convey.So(msg.MessageId, convey.ShouldEqual, n.ID)

			var decoded model.Notification
			convey.So(json.Unmarshal(msg.Body, &decoded), convey.ShouldBeNil)
			convey.So(decoded.Recipients, convey.ShouldResemble, n.Recipients)
		})

		convey.Convey("Close closes the channel", func() {
			convey.So(p.Close(), convey.ShouldBeNil)
			convey.So(ch.closed, convey.ShouldBeTrue)
		})
	})

	convey.Convey("A failing exchange declaration closes the channel", t, func() {
		ch := &fakeChannel{declareErr: errors.New("access refused")}
		_, err := newAMQP(ch, "x")
		convey.So(err, convey.ShouldNotBeNil)
		convey.So(ch.closed, convey.ShouldBeTrue)
	})
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	if err := logger.InitWithOptions(logger.Options{Writer: &buf}); err != nil {
		t.Fatal(err)
	}
	n := NewLog(logger.Get())
	if err := n.Notify(context.Background(), model.Notification{ID: "s9:session.left:2", Kind: model.NotifySessionLeft}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "s9:session.left:2") {
		t.Fatalf("expected notification id in log output, got %q", buf.String())
	}
}
