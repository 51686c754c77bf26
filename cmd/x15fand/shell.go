package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/cyear/nuc-fan/controller"
	"github.com/cyear/nuc-fan/hardware"
	"github.com/cyear/nuc-fan/models"
	"github.com/cyear/nuc-fan/utils"
)

var errUsage = errors.New("incorrect number of arguments")

func parseAddress(s string) (hardware.RegisterAddress, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid register address %q: %w", s, err)
	}
	return hardware.RegisterAddress(v), nil
}

// newShell builds the interactive debug shell over the daemon's components.
func newShell(d *daemon) *ishell.Shell {
	shell := ishell.New()
	shell.Println("X15 fan daemon debug shell")
	shell.ShowPrompt(true)

	shell.AddCmd(&ishell.Cmd{
		Name: "read",
		Help: "read <address>",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(errUsage)
				return
			}
			addr, err := parseAddress(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			v, err := hardware.Read(d.regs, addr)
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("0x%04X = %d (low byte 0x%02X)\n", uint16(addr), v, hardware.LowByte(v))
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "write",
		Help: "write <address> <byte>",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 2 {
				c.Err(errUsage)
				return
			}
			addr, err := parseAddress(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			data, err := strconv.ParseUint(c.Args[1], 0, 8)
			if err != nil {
				c.Err(fmt.Errorf("invalid data byte %q: %w", c.Args[1], err))
				return
			}
			v, err := hardware.Write(d.regs, addr, byte(data))
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("0x%04X <- 0x%02X, returned %d\n", uint16(addr), data, v)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "start",
		Help: "start the fan loop with the saved curve",
		Func: func(c *ishell.Context) {
			data, err := utils.LoadFanConfig(d.config.CurvePath)
			if err != nil {
				c.Err(err)
				return
			}
			if err := d.fans.Start(data); err != nil {
				c.Err(err)
				return
			}
			c.Println("Fan control running")
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "stop",
		Help: "stop the fan loop and restore automatic mode",
		Func: func(c *ishell.Context) {
			<-d.fans.Stop()
			c.Println("Automatic fan mode restored")
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "speeds",
		Help: "print fan speeds and temperatures",
		Func: func(c *ishell.Context) {
			s, err := controller.GetFanSpeeds(d.regs)
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("left %d rpm %d°C, right %d rpm %d°C\n", s.LeftFanSpeed, s.LeftTemp, s.RightFanSpeed, s.RightTemp)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "state",
		Help: "print the fan loop state",
		Func: func(c *ishell.Context) {
			c.Printf("%+v\n", d.fans.GetPublicState())
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "tdp",
		Help: "tdp [<cpu1> <cpu2> <gpu1> <gpu2> <tcc>]",
		Func: func(c *ishell.Context) {
			switch len(c.Args) {
			case 0:
				t, err := d.tdp.GetTdp()
				if err != nil {
					c.Err(err)
					return
				}
				c.Printf("%+v\n", t)
			case 5:
				var v [5]int64
				for i, arg := range c.Args {
					n, err := strconv.ParseInt(arg, 10, 64)
					if err != nil {
						c.Err(err)
						return
					}
					v[i] = n
				}
				err := d.tdp.SetTdp(models.Tdp{Cpu1: v[0], Cpu2: v[1], Gpu1: v[2], Gpu2: v[3], Tcc: v[4]})
				if err != nil {
					c.Err(err)
				}
			default:
				c.Err(errUsage)
			}
		},
	})

	return shell
}
