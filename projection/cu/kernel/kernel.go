// Package kernel carries the PTX source of the projection kernel.
package kernel

// PTXMatMul computes one float32 output element per thread:
// C[row*ldc + c0 + col] = sum_i A[row*f + i] * B[i*bc + col].
const PTXMatMul = `
.version 6.0
.target sm_50
.address_size 64

.visible .entry matmul(
	.param .u64 pA,
	.param .u64 pB,
	.param .u64 pC,
	.param .u32 pn,
	.param .u32 pf,
	.param .u32 pbc,
	.param .u32 pldc,
	.param .u32 pc0
)
{
	.reg .pred %p<4>;
	.reg .f32 %f<4>;
	.reg .b32 %r<20>;
	.reg .b64 %rd<12>;

	ld.param.u64 %rd1, [pA];
	ld.param.u64 %rd2, [pB];
	ld.param.u64 %rd3, [pC];
	ld.param.u32 %r1, [pn];
	ld.param.u32 %r2, [pf];
	ld.param.u32 %r3, [pbc];
	ld.param.u32 %r4, [pldc];
	ld.param.u32 %r5, [pc0];
	cvta.to.global.u64 %rd1, %rd1;
	cvta.to.global.u64 %rd2, %rd2;
	cvta.to.global.u64 %rd3, %rd3;

	mov.u32 %r6, %ctaid.x;
	mov.u32 %r7, %ntid.x;
	mov.u32 %r8, %tid.x;
	mad.lo.s32 %r9, %r6, %r7, %r8;
	mov.u32 %r10, %ctaid.y;
	mov.u32 %r11, %ntid.y;
	mov.u32 %r12, %tid.y;
	mad.lo.s32 %r13, %r10, %r11, %r12;

	setp.ge.s32 %p1, %r9, %r3;
	setp.ge.s32 %p2, %r13, %r1;
	or.pred %p3, %p1, %p2;
	@%p3 bra $L_done;

	mov.f32 %f1, 0f00000000;
	mov.u32 %r14, 0;
	mul.lo.s32 %r15, %r13, %r2;
	mul.wide.s32 %rd4, %r15, 4;
	add.s64 %rd5, %rd1, %rd4;
	mul.wide.s32 %rd6, %r9, 4;
	add.s64 %rd7, %rd2, %rd6;
	mul.wide.s32 %rd8, %r3, 4;

$L_loop:
	setp.ge.s32 %p1, %r14, %r2;
	@%p1 bra $L_store;
	ld.global.f32 %f2, [%rd5];
	ld.global.f32 %f3, [%rd7];
	fma.rn.f32 %f1, %f2, %f3, %f1;
	add.s64 %rd5, %rd5, 4;
	add.s64 %rd7, %rd7, %rd8;
	add.s32 %r14, %r14, 1;
	bra $L_loop;

$L_store:
	add.s32 %r16, %r5, %r9;
	mad.lo.s32 %r17, %r13, %r4, %r16;
	mul.wide.s32 %rd9, %r17, 4;
	add.s64 %rd10, %rd3, %rd9;
	st.global.f32 [%rd10], %f1;

$L_done:
	ret;
}
`
