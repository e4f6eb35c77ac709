package session

// Transport is the part of a peripheral the session needs: notifications and reads.
type Transport interface {
	Address() string
	Subscribe(service, characteristic string, fn func(buf []byte)) error
	Read(service, characteristic string) ([]byte, error)
}

// Attach reads every read-once channel the transport offers and subscribes to every notify
// channel. Characteristics the device lacks are skipped. It returns the number of notify
// channels subscribed.
func (s *Session) Attach(t Transport) int {
	address := t.Address()

	for _, spec := range Channels {
		if spec.Mode != ModeRead {
			continue
		}
		buf, err := t.Read(spec.Service, spec.Characteristic)
		if err != nil {
			continue
		}
		s.HandleFrame(Frame{
			Device:         address,
			Channel:        spec.Channel,
			Characteristic: spec.Characteristic,
			Data:           buf,
			Received:       s.now(),
		})
	}

	subscribed := 0
	for _, spec := range NotifyChannels() {
		spec := spec
		err := t.Subscribe(spec.Service, spec.Characteristic, func(buf []byte) {
			// the transport may reuse buf after the callback returns
			data := append([]byte(nil), buf...)
			s.HandleFrame(Frame{
				Device:         address,
				Channel:        spec.Channel,
				Characteristic: spec.Characteristic,
				Data:           data,
				Received:       s.now(),
			})
		})
		if err != nil {
			s.logger.Printf("Session: %s has no %s: %v", address, spec.DisplayName, err)
			continue
		}
		s.logger.Printf("Session: %s streaming %s", address, spec.DisplayName)
		subscribed++
	}
	return subscribed
}
