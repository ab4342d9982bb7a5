package compile

// The prelude: assembly procedures backing operations the VM has no native
// instruction for. Signed integers use two's-complement conventions over
// the u32/u64 ops; floats are unpacked into sign/exponent/mantissa and
// recombined. Subnormal results flush to zero and rounding truncates.
//
// Call convention: operands are pushed left to right, so a binary procedure
// sees [b, a, ...] and leaves [result, ...].

// preludeDeps lists procedures a procedure calls, so that using one pulls
// in its helpers.
var preludeDeps = map[string][]string{
	"f32_lt":  {"f32_key"},
	"f32_add": {"f32_unpack", "f32_pack", "f32_sub_impl"},
	"f32_sub": {"f32_add"},
	"f32_mul": {"f32_unpack", "f32_pack"},
	"f32_div": {"f32_unpack", "f32_pack", "f32_sub_impl"},
	"i64_div": {"i64_abs"},
	"i64_mod": {"i64_abs"},
}

var preludeProcs = map[string]string{
	// hex_digit: [n] -> [ascii] for n in 0..15.
	"hex_digit": `proc.hex_digit
  # [n]
  dup
  push.10
  u32checked_lt
  if.true
    push.48
    u32checked_add
  else
    push.87
    u32checked_add
  end
end
`,

	// i32_div: [b, a] -> [a / b], truncated signed division.
	"i32_div": `proc.i32_div.2
  # [b, a]
  loc_store.0
  loc_store.1
  # sign = (a >> 31) != (b >> 31)
  loc_load.1
  u32checked_shr.31
  loc_load.0
  u32checked_shr.31
  u32checked_neq
  # [sign]
  # |a| / |b|
  loc_load.1
  dup
  u32checked_shr.31
  if.true
    u32checked_not
    push.1
    u32wrapping_add
  end
  loc_load.0
  dup
  u32checked_shr.31
  if.true
    u32checked_not
    push.1
    u32wrapping_add
  end
  # [|b|, |a|, sign]
  u32checked_div
  # [q, sign]
  swap
  if.true
    u32checked_not
    push.1
    u32wrapping_add
  end
end
`,

	// i32_mod: [b, a] -> [a % b], the remainder takes the dividend's sign.
	"i32_mod": `proc.i32_mod.2
  # [b, a]
  loc_store.0
  loc_store.1
  # sign of the dividend
  loc_load.1
  u32checked_shr.31
  # [a_sign]
  loc_load.1
  dup
  u32checked_shr.31
  if.true
    u32checked_not
    push.1
    u32wrapping_add
  end
  loc_load.0
  dup
  u32checked_shr.31
  if.true
    u32checked_not
    push.1
    u32wrapping_add
  end
  # [|b|, |a|, a_sign]
  u32checked_mod
  # [r, a_sign]
  swap
  if.true
    u32checked_not
    push.1
    u32wrapping_add
  end
end
`,

	// i32_shr: [b, a] -> [a >> b], arithmetic shift.
	"i32_shr": `proc.i32_shr.2
  # [shift, a]
  loc_store.0
  loc_store.1
  loc_load.1
  loc_load.0
  u32checked_shr
  # [a >>> shift]
  loc_load.1
  u32checked_shr.31
  if.true
    # negative: fill the vacated bits with ones
    loc_load.0
    push.0
    u32checked_neq
    if.true
      push.4294967295
      push.32
      loc_load.0
      u32checked_sub
      u32checked_shl
      u32checked_or
    end
  end
end
`,

	// i64_abs: [hi, lo] -> [|x|_hi, |x|_lo, sign].
	"i64_abs": `proc.i64_abs.2
  # [hi, lo]
  loc_store.0
  loc_store.1
  loc_load.0
  u32checked_shr.31
  # [sign]
  dup
  if.true
    # negate: ~x + 1 over both words
    loc_load.1
    u32checked_not
    loc_load.0
    u32checked_not
    push.1
    push.0
    exec.u64::wrapping_add
    # [hi, lo, sign]
    movup.2
  else
    loc_load.1
    loc_load.0
    movup.2
  end
  # [sign, hi, lo] -> want [hi, lo, sign]
  movdn.2
end
`,

	// i64_div: [b_hi, b_lo, a_hi, a_lo] -> [q_hi, q_lo].
	"i64_div": `proc.i64_div.2
  # [b_hi, b_lo, a_hi, a_lo]
  exec.i64_abs
  # [|b|_hi, |b|_lo, b_sign, a_hi, a_lo]
  movup.2
  movup.4
  movup.4
  # [a_hi, a_lo, b_sign, |b|_hi, |b|_lo]
  exec.i64_abs
  # [|a|_hi, |a|_lo, a_sign, b_sign, |b|_hi, |b|_lo]
  movup.2
  movup.3
  u32checked_neq
  loc_store.0
  # [|a|_hi, |a|_lo, |b|_hi, |b|_lo]
  movup.3
  movup.3
  # [|b|_hi, |b|_lo, |a|_hi, |a|_lo]
  exec.u64::checked_div
  # [q_hi, q_lo]
  loc_load.0
  if.true
    u32checked_not
    swap
    u32checked_not
    swap
    push.1
    push.0
    exec.u64::wrapping_add
  end
end
`,

	// i64_mod: [b_hi, b_lo, a_hi, a_lo] -> [r_hi, r_lo].
	"i64_mod": `proc.i64_mod.2
  # [b_hi, b_lo, a_hi, a_lo]
  exec.i64_abs
  movup.2
  drop
  # [|b|_hi, |b|_lo, a_hi, a_lo]
  movup.3
  movup.3
  # [a_hi, a_lo, |b|_hi, |b|_lo]
  exec.i64_abs
  # [|a|_hi, |a|_lo, a_sign, |b|_hi, |b|_lo]
  movup.2
  loc_store.0
  # [|a|_hi, |a|_lo, |b|_hi, |b|_lo]
  movup.3
  movup.3
  # [|b|_hi, |b|_lo, |a|_hi, |a|_lo]
  exec.u64::checked_mod
  # [r_hi, r_lo]
  loc_load.0
  if.true
    u32checked_not
    swap
    u32checked_not
    swap
    push.1
    push.0
    exec.u64::wrapping_add
  end
end
`,

	// f32_key: [x] -> [key] such that unsigned order of keys matches float
	// order (NaN excluded).
	"f32_key": `proc.f32_key
  # [x]
  dup
  u32checked_shr.31
  if.true
    u32checked_not
  else
    push.2147483648
    u32checked_or
  end
end
`,

	// f32_lt: [b, a] -> [a < b].
	"f32_lt": `proc.f32_lt
  # [b, a]
  exec.f32_key
  swap
  exec.f32_key
  swap
  # [b_key, a_key]
  u32checked_lt
end
`,

	// f64_lt: [b_hi, b_lo, a_hi, a_lo] -> [a < b], via the same order-
	// preserving key transform on both words.
	"f64_lt": `proc.f64_lt
  # transform b
  dup
  u32checked_shr.31
  if.true
    u32checked_not
    swap
    u32checked_not
    swap
  else
    push.2147483648
    u32checked_or
  end
  # [b_hi', b_lo', a_hi, a_lo]
  movup.3
  movup.3
  # [a_hi, a_lo, b_hi', b_lo']
  dup
  u32checked_shr.31
  if.true
    u32checked_not
    swap
    u32checked_not
    swap
  else
    push.2147483648
    u32checked_or
  end
  # [a_hi', a_lo', b_hi', b_lo']
  movup.3
  movup.3
  # [b_hi', b_lo', a_hi', a_lo']
  exec.u64::checked_lt
end
`,

	// f32_unpack: [x] -> [mant, exp, sign]. Normal numbers get the implicit
	// bit; subnormals flush to zero.
	"f32_unpack": `proc.f32_unpack
  # [x]
  dup
  u32checked_shr.31
  # [sign, x]
  swap
  dup
  u32checked_shr.23
  push.255
  u32checked_and
  # [exp, x, sign]
  swap
  push.8388607
  u32checked_and
  # [frac, exp, sign]
  dup.1
  push.0
  u32checked_neq
  if.true
    push.8388608
    u32checked_or
  else
    drop
    push.0
  end
  # [mant, exp, sign]
end
`,

	// f32_pack: [mant, exp, sign] -> [x]. The mantissa must carry the
	// implicit bit (or be zero); overflow saturates to infinity.
	"f32_pack": `proc.f32_pack.3
  loc_store.0
  loc_store.1
  loc_store.2
  loc_load.0
  push.0
  u32checked_eq
  if.true
    # zero mantissa: signed zero
    loc_load.2
    u32checked_shl.31
  else
    loc_load.1
    push.254
    u32checked_gt
    if.true
      # exponent overflow: infinity
      loc_load.2
      u32checked_shl.31
      push.2139095040
      u32checked_or
    else
      loc_load.2
      u32checked_shl.31
      loc_load.1
      u32checked_shl.23
      u32checked_or
      loc_load.0
      push.8388607
      u32checked_and
      u32checked_or
    end
  end
end
`,

	// f32_add: [b, a] -> [a + b]. Aligns exponents, adds or subtracts the
	// mantissas depending on the signs, renormalizes.
	"f32_add": `proc.f32_add.6
  # [b, a]
  exec.f32_unpack
  loc_store.3
  loc_store.4
  loc_store.5
  # b in locals 3..5 (mant, exp, sign)
  exec.f32_unpack
  loc_store.0
  loc_store.1
  loc_store.2
  # a in locals 0..2
  # order so that |a| >= |b|: compare (exp, mant)
  loc_load.1
  loc_load.4
  u32checked_lt
  loc_load.1
  loc_load.4
  u32checked_eq
  loc_load.0
  loc_load.3
  u32checked_lt
  and
  or
  if.true
    # swap a and b
    loc_load.0
    loc_load.3
    loc_store.0
    loc_store.3
    loc_load.1
    loc_load.4
    loc_store.1
    loc_store.4
    loc_load.2
    loc_load.5
    loc_store.2
    loc_store.5
  end
  # align: shift b's mantissa right by the exponent difference
  loc_load.1
  loc_load.4
  u32checked_sub
  dup
  push.31
  u32checked_gt
  if.true
    drop
    push.31
  end
  loc_load.3
  swap
  u32checked_shr
  loc_store.3
  # same signs add, different signs subtract
  loc_load.2
  loc_load.5
  u32checked_eq
  if.true
    loc_load.0
    loc_load.3
    u32checked_add
    # renormalize one step if the mantissa overflowed
    dup
    push.16777215
    u32checked_gt
    if.true
      u32checked_shr.1
      loc_load.1
      push.1
      u32checked_add
      loc_store.1
    end
    loc_store.0
  else
    loc_load.0
    loc_load.3
    u32checked_sub
    loc_store.0
    exec.f32_sub_impl
  end
  loc_load.0
  loc_load.1
  loc_load.2
  exec.f32_pack
end
`,

	// f32_sub_impl: renormalizes local 0 (mantissa) against local 1
	// (exponent) after a subtraction, shifting left until the implicit bit
	// returns.
	"f32_sub_impl": `proc.f32_sub_impl.2
  push.1
  while.true
    loc_load.0
    push.0
    u32checked_neq
    loc_load.0
    push.8388608
    u32checked_lt
    and
    if.true
      loc_load.0
      u32checked_shl.1
      loc_store.0
      loc_load.1
      push.1
      u32checked_sub
      loc_store.1
      push.1
    else
      push.0
    end
  end
end
`,

	// f32_sub: [b, a] -> [a - b] = a + (-b).
	"f32_sub": `proc.f32_sub
  # [b, a]
  push.2147483648
  u32checked_xor
  exec.f32_add
end
`,

	// f32_mul: [b, a] -> [a * b]. The 48-bit mantissa product is computed
	// in the field and split into u32 limbs for the shift back down.
	"f32_mul": `proc.f32_mul.6
  # [b, a]
  exec.f32_unpack
  loc_store.3
  loc_store.4
  loc_store.5
  exec.f32_unpack
  loc_store.0
  loc_store.1
  loc_store.2
  # sign = a_sign xor b_sign
  loc_load.2
  loc_load.5
  u32checked_xor
  loc_store.2
  # exponent = a_exp + b_exp - 127
  loc_load.1
  loc_load.4
  u32wrapping_add
  push.127
  u32wrapping_sub
  loc_store.1
  # mantissa = (a_mant * b_mant) >> 23
  loc_load.0
  loc_load.3
  mul
  u32split
  # [hi, lo]
  push.23
  exec.u64::checked_shr
  # [hi, lo] with hi = 0 after the shift
  drop
  # renormalize one step if the product overflowed
  dup
  push.16777215
  u32checked_gt
  if.true
    u32checked_shr.1
    loc_load.1
    push.1
    u32checked_add
    loc_store.1
  end
  loc_store.0
  loc_load.0
  loc_load.1
  loc_load.2
  exec.f32_pack
end
`,

	// f32_div: [b, a] -> [a / b]. The dividend mantissa is pre-scaled by
	// 2^23 in the field so the integer quotient keeps full precision.
	"f32_div": `proc.f32_div.6
  # [b, a]
  exec.f32_unpack
  loc_store.3
  loc_store.4
  loc_store.5
  exec.f32_unpack
  loc_store.0
  loc_store.1
  loc_store.2
  # division by zero traps
  loc_load.3
  push.0
  u32checked_neq
  assert
  loc_load.2
  loc_load.5
  u32checked_xor
  loc_store.2
  # exponent = a_exp - b_exp + 127
  loc_load.1
  loc_load.4
  u32wrapping_sub
  push.127
  u32wrapping_add
  loc_store.1
  # mantissa = (a_mant << 23) / b_mant
  loc_load.0
  push.8388608
  mul
  u32split
  # [hi, lo]
  loc_load.3
  push.0
  # [b_hi=0, b_lo, a_hi, a_lo]
  exec.u64::checked_div
  # [q_hi=0, q_lo]
  drop
  # renormalize down one step if needed
  dup
  push.16777215
  u32checked_gt
  if.true
    u32checked_shr.1
    loc_load.1
    push.1
    u32checked_add
    loc_store.1
  end
  # renormalize up while below the implicit bit
  loc_store.0
  exec.f32_sub_impl
  loc_load.0
  loc_load.1
  loc_load.2
  exec.f32_pack
end
`,
}
