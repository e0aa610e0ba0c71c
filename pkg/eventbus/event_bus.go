package eventbus

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"
)

type Subscriber struct {
	Handler interface{}
}

// EventBus dispatches events to every subscribed handler whose parameter
// list matches the published arguments.
type EventBus interface {
	Publish(args ...interface{})
	PublishE(args ...interface{}) error
	Subscribe(handler interface{})
	Unsubscribe(handler interface{})
	Clear()
	SubscribersCount() int
}

var (
	ErrNoSubscribers        = errors.New("eventbus: no matching subscribers")
	ErrInvalidHandlerReturn = errors.New("eventbus: invalid handler return signature")
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

type publisherImpl struct {
	log         *logrus.Logger
	mu          sync.RWMutex
	subscribers []Subscriber
}

func NewEventPublisher(log *logrus.Logger) EventBus {
	return &publisherImpl{log: log}
}

func MatchSignature(handler interface{}, args []interface{}) bool {
	t := reflect.TypeOf(handler)
	if t == nil || t.Kind() != reflect.Func {
		return false
	}
	if t.NumIn() != len(args) {
		return false
	}

	for i, arg := range args {
		paramType := t.In(i)
		if arg == nil {
			if paramType.Kind() != reflect.Interface && paramType.Kind() != reflect.Ptr {
				return false
			}
			continue
		}
		argType := reflect.TypeOf(arg)
		if paramType.Kind() == reflect.Interface {
			if !argType.Implements(paramType) {
				return false
			}
			continue
		}
		if !argType.AssignableTo(paramType) {
			return false
		}
	}
	return true
}

func callArgs(handler reflect.Type, args []interface{}) []reflect.Value {
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		if arg == nil {
			in[i] = reflect.Zero(handler.In(i))
			continue
		}
		in[i] = reflect.ValueOf(arg)
	}
	return in
}

func (p *publisherImpl) matching(args []interface{}) []Subscriber {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Subscriber, 0, len(p.subscribers))
	for _, s := range p.subscribers {
		if MatchSignature(s.Handler, args) {
			out = append(out, s)
		}
	}
	return out
}

// invoke calls one handler, converting a panic into an error.
func invoke(s Subscriber, args []interface{}) (out []reflect.Value, err error) {
	v := reflect.ValueOf(s.Handler)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("eventbus: handler %s panicked: %v", v.Type().String(), r)
		}
	}()
	return v.Call(callArgs(v.Type(), args)), nil
}

func (p *publisherImpl) Publish(args ...interface{}) {
	handled := false
	for _, s := range p.matching(args) {
		if _, err := invoke(s, args); err != nil {
			if p.log != nil {
				p.log.WithField("args", fmt.Sprintf("%v", args)).Error(err.Error())
			}
			continue
		}
		handled = true
	}
	if !handled && p.log != nil {
		p.log.Warnf("eventbus.Publish: no matching subscribers for event with args: %v", args)
	}
}

func (p *publisherImpl) PublishE(args ...interface{}) error {
	subs := p.matching(args)
	if len(subs) == 0 {
		return ErrNoSubscribers
	}

	var errs []error
	for _, s := range subs {
		out, err := invoke(s, args)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(out) == 0 {
			continue
		}
		name := reflect.TypeOf(s.Handler).String()
		if len(out) != 1 || out[0].Type() != errorType {
			errs = append(errs, fmt.Errorf("%w: handler %s", ErrInvalidHandlerReturn, name))
			continue
		}
		if !out[0].IsNil() {
			errs = append(errs, out[0].Interface().(error))
		}
	}
	return errors.Join(errs...)
}

func (p *publisherImpl) Subscribe(handler interface{}) {
	t := reflect.TypeOf(handler)
	if t == nil || t.Kind() != reflect.Func {
		panic("handler must be a function")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, Subscriber{Handler: handler})
}

func (p *publisherImpl) Unsubscribe(handler interface{}) {
	target := reflect.ValueOf(handler).Pointer()
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, s := range p.subscribers {
		if reflect.ValueOf(s.Handler).Pointer() == target {
			p.subscribers = append(p.subscribers[:i], p.subscribers[i+1:]...)
			return
		}
	}
}

func (p *publisherImpl) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = nil
}

func (p *publisherImpl) SubscribersCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscribers)
}
