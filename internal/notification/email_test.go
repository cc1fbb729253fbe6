package notification_test

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/frahmantamala/leave-management/internal"
	"github.com/frahmantamala/leave-management/internal/notification"
	"github.com/frahmantamala/leave-management/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// mailbox is a minimal SMTP server that accepts every command and keeps the
// DATA of each message.
type mailbox struct {
	mu       sync.Mutex
	messages []string
}

func (m *mailbox) serve(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	reply := func(lines ...string) {
		_, _ = conn.Write([]byte(strings.Join(lines, "\r\n") + "\r\n"))
	}
	reply("220 localhost ESMTP")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			reply("250-localhost", "250 8BITMIME")
		case cmd == "DATA":
			reply("354 go ahead")
			var body strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				body.WriteString(l)
			}
			m.mu.Lock()
			m.messages = append(m.messages, body.String())
			m.mu.Unlock()
			reply("250 queued")
		case cmd == "QUIT":
			reply("221 bye")
			return
		default:
			reply("250 ok")
		}
	}
}

func (m *mailbox) received() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.messages...)
}

var _ = Describe("SMTP sender", func() {
	var listener net.Listener

	BeforeEach(func() {
		var err error
		listener, err = net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = listener.Close()
	})

	senderFor := func(timeout time.Duration) notification.EmailSender {
		host, port, err := net.SplitHostPort(listener.Addr().String())
		Expect(err).NotTo(HaveOccurred())
		p, err := strconv.Atoi(port)
		Expect(err).NotTo(HaveOccurred())

		sender, err := notification.NewEmailSender(internal.NotificationConfig{
			SMTPHost:    host,
			SMTPPort:    p,
			SMTPTimeout: timeout,
			From:        "no-reply@leave.local",
		}, logger.Discard())
		Expect(err).NotTo(HaveOccurred())
		_, ok := sender.(*notification.SMTPSender)
		Expect(ok).To(BeTrue())
		return sender
	}

	It("delivers a plain text message", func() {
		box := &mailbox{}
		go func() {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			box.serve(conn)
		}()

		err := senderFor(5*time.Second).Send(context.Background(), notification.Email{
			To:      "awa@acme.test",
			Subject: "Leave approved",
			Body:    "Your leave was approved.",
		})
		Expect(err).NotTo(HaveOccurred())

		Eventually(box.received).Should(HaveLen(1))
		msg := box.received()[0]
		Expect(msg).To(ContainSubstring("Subject: Leave approved"))
		Expect(msg).To(ContainSubstring("awa@acme.test"))
		Expect(msg).To(ContainSubstring("Your leave was approved."))
	})

	It("gives up on a server that never greets once the context expires", func() {
		go func() {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
			time.Sleep(10 * time.Second)
		}()

		sender := senderFor(30 * time.Second)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			done <- sender.Send(ctx, notification.Email{To: "awa@acme.test", Subject: "s", Body: "b"})
		}()

		var err error
		Eventually(done, 4*time.Second).Should(Receive(&err))
		Expect(err).To(HaveOccurred())
	})

	It("gives up on a silent server after its own timeout", func() {
		go func() {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
			time.Sleep(10 * time.Second)
		}()

		done := make(chan error, 1)
		go func() {
			done <- senderFor(time.Second).Send(context.Background(), notification.Email{To: "awa@acme.test", Subject: "s", Body: "b"})
		}()

		var err error
		Eventually(done, 4*time.Second).Should(Receive(&err))
		Expect(err).To(HaveOccurred())
	})

	It("logs instead of sending without a host", func() {
		sender, err := notification.NewEmailSender(internal.NotificationConfig{}, logger.Discard())
		Expect(err).NotTo(HaveOccurred())
		Expect(sender.Send(context.Background(), notification.Email{To: "awa@acme.test"})).To(Succeed())
		Expect(sender.Send(context.Background(), notification.Email{})).To(MatchError(notification.ErrNoRecipient))
	})
})
