package sim

import (
	"bytes"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("HookableBase", func() {
	var (
		mockCtrl *gomock.Controller
		hookable *HookableBase
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		hookable = NewHookableBase()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should invoke hooks in registration order", func() {
		pos := &HookPos{Name: "Test"}
		ctx := HookCtx{Domain: hookable, Pos: pos, Item: 1}

		first := NewMockHook(mockCtrl)
		second := NewMockHook(mockCtrl)
		gomock.InOrder(
			first.EXPECT().Func(ctx),
			second.EXPECT().Func(ctx),
		)

		hookable.AcceptHook(first)
		hookable.AcceptHook(second)
		hookable.InvokeHook(ctx)

		Expect(hookable.NumHooks()).To(Equal(2))
	})

	It("should adapt functions into hooks", func() {
		var got []interface{}
		hookable.AcceptHook(HookFunc(func(ctx HookCtx) {
			got = append(got, ctx.Item)
		}))

		hookable.InvokeHook(HookCtx{Item: "a"})
		hookable.InvokeHook(HookCtx{Item: "b"})

		Expect(got).To(Equal([]interface{}{"a", "b"}))
	})
})

var _ = Describe("LogHookBase", func() {
	It("should fall back to the default logger", func() {
		Expect(NewLogHookBase(nil).Logger).To(BeIdenticalTo(slog.Default()))
	})

	It("should write into the given logger", func() {
		buf := new(bytes.Buffer)
		base := NewLogHookBase(slog.New(slog.NewTextHandler(buf, nil)))

		base.Info("hello", "n", 1)

		Expect(buf.String()).To(ContainSubstring("msg=hello n=1"))
	})
})
