/*
 * Copyright 2021-2022 by Nedim Sabic Sabic
 * https://www.fibratus.io
 * All Rights Reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sys

//go:generate go run golang.org/x/sys/windows/mkwinsyscall -output zsyscall_windows.go syscall.go

//sys OpenDesktop(name *uint16, flags uint32, inherit bool, access uint32) (desk Hdesk, err error) [failretval==0] = user32.OpenDesktopW
//sys CloseDesktop(desk Hdesk) (err error) = user32.CloseDesktop
//sys SetThreadDesktop(desk Hdesk) (err error) = user32.SetThreadDesktop
//sys GetThreadDesktop(tid uint32) (desk Hdesk, err error) [failretval==0] = user32.GetThreadDesktop
//sys GetProcessWindowStation() (winsta Hwinsta, err error) [failretval==0] = user32.GetProcessWindowStation
//sys EnumDesktops(winsta Hwinsta, cb uintptr, param uintptr) (err error) = user32.EnumDesktopsW
//sys GetUserObjectInformation(obj windows.Handle, index int32, info unsafe.Pointer, length uint32, needed *uint32) (err error) = user32.GetUserObjectInformationW
//sys IsGUIThread(convert bool) (ok bool) = user32.IsGUIThread
//sys NtQueryInformationThread(thread windows.Handle, class int32, info unsafe.Pointer, infoLen uint32, retLen *uint32) (ntstatus error) = ntdll.NtQueryInformationThread
